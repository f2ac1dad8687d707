package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		c.Next()

		// route template keeps node ids out of label values
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		status := strconv.Itoa(c.Writer.Status())
		metrics.RecordHTTPRequest(method, path, status, time.Since(start))
	}
}

// Timer measures a record operation's duration
type Timer struct {
	start   time.Time
	metrics *Metrics
	op      string
	mode    string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, op, mode string) *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: metrics,
		op:      op,
		mode:    mode,
	}
}

// Stop stops the timer and records the duration
func (t *Timer) Stop(status string, size int) {
	t.metrics.RecordRecordOp(t.op, t.mode, status, time.Since(t.start), size)
}
