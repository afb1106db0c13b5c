package obs

import (
	"encoding/json"
	"log"
	"os"
	"sync"
)

var shared struct {
	once sync.Once
	l    *log.Logger
}

// Logger returns the process-wide logger. Every line it emits is a single
// JSON object, so request logs and visit audit events share one stream.
func Logger() *log.Logger {
	shared.once.Do(func() {
		shared.l = log.New(os.Stdout, "", 0)
	})
	return shared.l
}

// LogRequest marshals the fields and writes one line.
func LogRequest(fields map[string]any) {
	line, err := json.Marshal(fields)
	if err != nil {
		Logger().Println(`{"level":"error","msg":"request log marshal failed"}`)
		return
	}
	Logger().Println(string(line))
}
