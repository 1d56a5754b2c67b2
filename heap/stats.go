package heap

import "sync/atomic"

import "github.com/bnclabs/golog"
import humanize "github.com/dustin/go-humanize"

// heapstats allocation counters, updated atomically on the entry
// paths and logged when `stats.interval` bytes have been allocated
// since the last report.
type heapstats struct {
	mallocs          int64
	malloced         int64
	mallocedRedzones int64
	frees            int64
	freed            int64
	reallocs         int64
	realloced        int64
	realfrees        int64
	reallyfreed      int64
	mallocLarge      int64
	mallocSmallSlow  int64
	mmaps            int64
	mmaped           int64

	mallocedBySize [64]int64
	freedBySize    [64]int64
	mmapedBySize   [64]int64

	sincelast int64
}

func humanbytes(n int64) string {
	return humanize.Bytes(uint64(n))
}

// logstats one status line in the manner of the arena loggers.
func (hs *heapstats) logstats(logprefix string) {
	fmsg := "%v mallocs %v frees %v malloced %v freed %v mmaped %v\n"
	log.Infof(fmsg, logprefix,
		atomic.LoadInt64(&hs.mallocs), atomic.LoadInt64(&hs.frees),
		humanbytes(atomic.LoadInt64(&hs.malloced)),
		humanbytes(atomic.LoadInt64(&hs.freed)),
		humanbytes(atomic.LoadInt64(&hs.mmaped)))
	fmsg = "%v redzones %v quarantine-evicted %v (%v)\n"
	log.Infof(fmsg, logprefix,
		humanbytes(atomic.LoadInt64(&hs.mallocedRedzones)),
		atomic.LoadInt64(&hs.realfrees),
		humanbytes(atomic.LoadInt64(&hs.reallyfreed)))
}
