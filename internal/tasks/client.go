package tasks

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/mikestefanello/backlite"
)

// Client runs libreria's background jobs on backlite. Jobs are kept in a
// separate SQLite file beside the catalog database.
type Client struct {
	queue   *backlite.Client
	db      *sql.DB
	cfg     Config
	running atomic.Bool
}

// TasksDBPath maps "dir/libreria.db" to "dir/libreria-tasks.db".
func TasksDBPath(mainDBPath string) string {
	ext := filepath.Ext(mainDBPath)
	return strings.TrimSuffix(mainDBPath, ext) + "-tasks" + ext
}

func openQueueDB(path string, workers int) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	// backlite holds one connection per worker plus its dispatcher and cleaner.
	db.SetMaxOpenConns(workers + 5)
	db.SetMaxIdleConns(workers + 2)
	db.SetConnMaxLifetime(time.Hour)
	return db, nil
}

func NewClient(mainDBPath string, cfg Config) (*Client, error) {
	path := TasksDBPath(mainDBPath)
	db, err := openQueueDB(path, cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("open queue database %s: %w", path, err)
	}

	queue, err := backlite.NewClient(backlite.ClientConfig{
		DB:              db,
		NumWorkers:      cfg.Workers,
		ReleaseAfter:    cfg.ReleaseAfter,
		CleanupInterval: cfg.CleanupInterval,
		Logger:          queueLog{},
	})
	if err == nil {
		err = queue.Install()
	}
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("set up task queue in %s: %w", path, err)
	}

	return &Client{queue: queue, db: db, cfg: cfg}, nil
}

// Register makes the given queues runnable. Call before Start.
func (c *Client) Register(queues ...backlite.Queue) {
	for _, q := range queues {
		c.queue.Register(q)
	}
}

// Start launches the workers. Later calls are no-ops.
func (c *Client) Start(ctx context.Context) {
	if !c.running.CompareAndSwap(false, true) {
		return
	}
	log.Printf("Sweep queue running with %d worker(s)", c.cfg.Workers)
	c.queue.Start(ctx)
}

// Stop drains in-flight jobs until ctx is done. It reports false when the
// drain was cut short.
func (c *Client) Stop(ctx context.Context) bool {
	if !c.running.Load() {
		return true
	}

	log.Println("Draining sweep queue")
	if !c.queue.Stop(ctx) {
		log.Printf("Sweep queue drain timed out; unfinished jobs are released after %v", c.cfg.ReleaseAfter)
		return false
	}
	log.Println("Sweep queue drained")
	return true
}

func (c *Client) Close() error {
	return c.db.Close()
}

// Enqueue stores tasks for the registered queues and returns their ids.
func (c *Client) Enqueue(ctx context.Context, tasks ...backlite.Task) ([]string, error) {
	ids, err := c.queue.Add(tasks...).Ctx(ctx).Save()
	if err != nil {
		return nil, fmt.Errorf("enqueue %d task(s): %w", len(tasks), err)
	}
	return ids, nil
}

// EnqueueSweep queues one orphan payload sweep.
func (c *Client) EnqueueSweep(ctx context.Context) (string, error) {
	ids, err := c.Enqueue(ctx, SweepOrphanUploadsTask{})
	if err != nil {
		return "", err
	}
	return ids[0], nil
}

// queueLog routes backlite's messages to the process log.
type queueLog struct{}

func (queueLog) Info(message string, params ...any) {
	log.Printf("[queue] "+message, params...)
}

func (queueLog) Error(message string, params ...any) {
	log.Printf("[queue] ERROR "+message, params...)
}
