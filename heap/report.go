package heap

import "fmt"

import "github.com/bnclabs/golog"
import "github.com/bnclabs/sanheap/api"

// logreporter default api.Reporter: renders events through golog and
// aborts by panicking. Hosts wanting process exit or richer formatting
// supply their own reporter.
type logreporter struct {
	logprefix string
}

// NewReporter default reporter used when the host supplies none.
func NewReporter(logprefix string) api.Reporter {
	return &logreporter{logprefix: logprefix}
}

func (r *logreporter) OutOfMemory(
	memtype string, size int64, tid int32, trace api.Trace) {

	fmsg := "%v ERROR: failed to allocate %v (%v) bytes (%v) in T%v\n"
	log.Errorf(fmsg, r.logprefix, size, humanbytes(size), memtype, tid)
	r.logtrace(trace)
}

func (r *logreporter) DoubleFree(addr uintptr, trace api.Trace) {
	log.Errorf("%v attempting double-free on %x:\n", r.logprefix, addr)
	r.logtrace(trace)
}

func (r *logreporter) FreeNotMalloced(addr uintptr, trace api.Trace) {
	fmsg := "%v attempting free on address which was not malloc()-ed: %x\n"
	log.Errorf(fmsg, r.logprefix, addr)
	r.logtrace(trace)
}

func (r *logreporter) Region(reg api.Region) {
	fmsg := "%v %x is located %v bytes %v %v-byte region [%x,%x)\n"
	log.Errorf(fmsg, r.logprefix,
		reg.Addr, reg.Offset, reg.Relation, reg.Size,
		reg.Begin, reg.Begin+uintptr(reg.Size))
}

func (r *logreporter) AllocatedBy(tid int32, trace api.Trace) {
	log.Errorf("%v previously allocated by thread T%v here:\n", r.logprefix, tid)
	r.logtrace(trace)
}

func (r *logreporter) FreedBy(tid int32, trace api.Trace) {
	log.Errorf("%v freed by thread T%v here:\n", r.logprefix, tid)
	r.logtrace(trace)
}

func (r *logreporter) Fatal(fmsg string, args ...interface{}) {
	log.Fatalf("%v "+fmsg+"\n", append([]interface{}{r.logprefix}, args...)...)
	panic(fmt.Errorf(fmsg, args...))
}

func (r *logreporter) logtrace(trace api.Trace) {
	for _, pc := range trace {
		log.Errorf("%v     #%x\n", r.logprefix, pc)
	}
}
