package logger

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/linkchecker/linkchecker/internal/checker"
	"github.com/linkchecker/linkchecker/internal/engine"
)

// mongoBatchSize is how many results are buffered before an insert.
const mongoBatchSize = 100

// mongoLogger inserts one document per result into a MongoDB
// collection. The connection is made lazily at Start so configuring
// the logger has no side effects.
type mongoLogger struct {
	uri        string
	database   string
	collection string

	mu     sync.Mutex
	client *mongo.Client
	coll   *mongo.Collection
	buf    []any
}

func newMongoLogger(args map[string]string) (*mongoLogger, error) {
	uri := args["uri"]
	if uri == "" {
		return nil, fmt.Errorf("mongodb logger needs a uri option")
	}
	database := args["database"]
	if database == "" {
		database = "linkchecker"
	}
	collection := args["collection"]
	if collection == "" {
		collection = "results"
	}
	return &mongoLogger{uri: uri, database: database, collection: collection}, nil
}

func (l *mongoLogger) Start() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(l.uri))
	if err != nil {
		return
	}
	if err := client.Ping(ctx, nil); err != nil {
		return
	}
	l.mu.Lock()
	l.client = client
	l.coll = client.Database(l.database).Collection(l.collection)
	l.mu.Unlock()
}

func (l *mongoLogger) Log(u *checker.URL) {
	warnings := make([]string, len(u.Warnings))
	for i, w := range u.Warnings {
		warnings[i] = fmt.Sprintf("[%s] %s", w.Tag, w.Msg)
	}
	doc := map[string]any{
		"url":       u.OrigURL,
		"realurl":   u.RealURL,
		"parent":    u.ParentURL,
		"name":      u.Name,
		"line":      u.Line,
		"column":    u.Column,
		"result":    u.Result,
		"valid":     u.Valid,
		"warnings":  warnings,
		"info":      u.Info,
		"size":      u.Size,
		"checktime": u.CheckTime.Seconds(),
		"dltime":    u.DLTime.Seconds(),
		"level":     u.RecursionLevel,
		"timestamp": time.Now(),
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.buf = append(l.buf, doc)
	if len(l.buf) >= mongoBatchSize {
		l.flushLocked()
	}
}

// flushLocked inserts the buffered documents. Callers hold the mutex.
func (l *mongoLogger) flushLocked() {
	if l.coll == nil || len(l.buf) == 0 {
		l.buf = nil
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	l.coll.InsertMany(ctx, l.buf)
	l.buf = nil
}

func (l *mongoLogger) End(stats engine.Stats) {
	l.mu.Lock()
	l.flushLocked()
	client := l.client
	l.client = nil
	l.mu.Unlock()
	if client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		client.Disconnect(ctx)
	}
}
