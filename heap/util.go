package heap

import "fmt"

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}

func assert(cond bool, fmsg string, args ...interface{}) {
	if !cond {
		panicerr(fmsg, args...)
	}
}
