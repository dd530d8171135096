package filerepo

import (
	"github.com/fluxorio/filerepo/pkg/failfast"
	"github.com/fluxorio/filerepo/pkg/future"
	"github.com/fluxorio/filerepo/pkg/logging"
	"github.com/fluxorio/filerepo/pkg/reactor"
)

// CloseFunc starts one shutdown action.
type CloseFunc func() *future.Future[future.Void]

// CloseAll runs every action concurrently and waits for all of them. It
// succeeds only if each one did; otherwise it fails with a *CompoundError
// listing the failures in the order the actions were given.
func CloseAll(loop *reactor.Reactor, fns ...CloseFunc) *future.Future[future.Void] {
	started := make([]*future.Future[future.Void], len(fns))
	for i, fn := range fns {
		started[i] = fn()
	}
	return future.Then(future.WhenAllComplete(loop, started), func(results []future.Result[future.Void]) (future.Void, error) {
		var errs []error
		for _, res := range results {
			if res.Err != nil {
				errs = append(errs, res.Err)
			}
		}
		if len(errs) > 0 {
			return future.Void{}, &CompoundError{Errors: errs}
		}
		return future.Void{}, nil
	})
}

// CloseRecover is CloseAll for best-effort cleanup: failures are logged and
// the result always succeeds.
func CloseRecover(loop *reactor.Reactor, logger logging.Logger, fns ...CloseFunc) *future.Future[future.Void] {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	return future.Catch(CloseAll(loop, fns...), func(err error) (future.Void, error) {
		logger.Errorf("%v", err)
		return future.Void{}, nil
	})
}

// CloseFail is CloseAll where any failure is unrecoverable and goes to
// failfast.Fatal.
func CloseFail(loop *reactor.Reactor, fns ...CloseFunc) *future.Future[future.Void] {
	return future.Catch(CloseAll(loop, fns...), func(err error) (future.Void, error) {
		failfast.Fatal(err)
		return future.Void{}, err
	})
}
