package uploadclient

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

const (
	progressBarWidth     = 32
	progressRenderPeriod = 120 * time.Millisecond
)

// uploadProgress рисует в out одну строку состояния загрузки файла:
// полосу по отправленным байтам и счётчик подтверждённых сервером частей.
// nil-значение допустимо: все методы ничего не делают.
type uploadProgress struct {
	out      io.Writer
	fileName string
	size     int64
	chunks   int

	mu         sync.Mutex
	sent       int64
	acked      int
	lastRender time.Time
	lastWidth  int
	finished   bool
}

func newUploadProgress(out io.Writer, fileName string, size int64, chunks int) *uploadProgress {
	if out == nil {
		return nil
	}
	return &uploadProgress{
		out:      out,
		fileName: fileName,
		size:     size,
		chunks:   chunks,
	}
}

// Write учитывает отправленные байты; используется как приёмник io.TeeReader.
func (p *uploadProgress) Write(b []byte) (int, error) {
	if p == nil || len(b) == 0 {
		return len(b), nil
	}
	p.mu.Lock()
	p.sent += int64(len(b))
	p.mu.Unlock()
	p.render(false)
	return len(b), nil
}

// ChunkDone отмечает часть, которую сервер принял.
func (p *uploadProgress) ChunkDone() {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.acked++
	p.mu.Unlock()
	p.render(true)
}

// Start печатает начальную строку до отправки первой части.
func (p *uploadProgress) Start() { p.render(true) }

// Finish завершает строку; complete — объявил ли сервер файл собранным.
func (p *uploadProgress) Finish(complete bool) {
	status := "uploaded, waiting for remaining chunks"
	if complete {
		status = "combined"
	}
	p.finish(" ✓ " + status)
}

// Fail завершает строку ошибкой.
func (p *uploadProgress) Fail(err error) {
	p.finish(fmt.Sprintf(" ✗ %v", err))
}

func (p *uploadProgress) render(force bool) {
	if p == nil {
		return
	}
	p.mu.Lock()
	now := time.Now()
	if p.finished || (!force && now.Sub(p.lastRender) < progressRenderPeriod) {
		p.mu.Unlock()
		return
	}
	p.lastRender = now
	line := p.padLocked(p.lineLocked())
	p.mu.Unlock()

	fmt.Fprint(p.out, "\r"+line)
}

func (p *uploadProgress) finish(suffix string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	if p.finished {
		p.mu.Unlock()
		return
	}
	p.finished = true
	line := p.padLocked(p.lineLocked() + suffix)
	p.mu.Unlock()

	fmt.Fprint(p.out, "\r"+line+"\n")
}

// padLocked дополняет строку пробелами, чтобы затереть хвост предыдущей.
func (p *uploadProgress) padLocked(line string) string {
	width := len(line)
	if p.lastWidth > width {
		line += strings.Repeat(" ", p.lastWidth-width)
	}
	p.lastWidth = width
	return line
}

func (p *uploadProgress) lineLocked() string {
	ratio := 1.0
	if p.size > 0 {
		ratio = min(float64(p.sent)/float64(p.size), 1)
	}
	filled := min(int(ratio*progressBarWidth+0.5), progressBarWidth)

	return fmt.Sprintf("%s [%s%s] %3d%% %s/%s %d/%d chunks",
		p.fileName,
		strings.Repeat("=", filled),
		strings.Repeat(" ", progressBarWidth-filled),
		int(ratio*100+0.5),
		humanBytes(p.sent),
		humanBytes(p.size),
		p.acked,
		p.chunks,
	)
}

func humanBytes(v int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB", "PB"}
	value := float64(v)
	unit := 0
	for value >= 1024 && unit < len(units)-1 {
		value /= 1024
		unit++
	}
	if unit == 0 {
		return fmt.Sprintf("%d %s", v, units[unit])
	}
	return fmt.Sprintf("%.1f %s", value, units[unit])
}
