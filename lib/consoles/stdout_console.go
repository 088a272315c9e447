package consoles

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

type writerConsole struct {
	mutex    sync.Mutex
	out      io.Writer
	now      func() time.Time
	prefixes []string
}

func NewStdOutConsole() Console {
	return NewWriterConsole(os.Stdout)
}

// NewWriterConsole writes timestamped lines to out.
func NewWriterConsole(out io.Writer) Console {
	return &writerConsole{
		out: out,
		now: time.Now,
	}
}

func (o *writerConsole) Printf(format string, a ...any) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	builder := strings.Builder{}
	builder.WriteString("[")
	builder.WriteString(o.now().Format("15:04:05"))
	builder.WriteString("] ")
	for _, prefix := range o.prefixes {
		builder.WriteString(prefix)
	}
	builder.WriteString(fmt.Sprintf(format, a...))
	_, _ = io.WriteString(o.out, builder.String())
}

func (o *writerConsole) PushPrefix(format string, a ...any) {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	o.prefixes = append(o.prefixes, fmt.Sprintf(format, a...))
}

func (o *writerConsole) PopPrefix() {
	o.mutex.Lock()
	defer o.mutex.Unlock()

	if len(o.prefixes) > 0 {
		o.prefixes = o.prefixes[:len(o.prefixes)-1]
	}
}
