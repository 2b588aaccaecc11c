package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/petri/petri-go/internal/client"
	"github.com/petri/petri-go/internal/knowledgestore"
	"github.com/petri/petri-go/internal/model"
	"github.com/petri/petri-go/internal/storage"
)

// fakeChatModel 记录每次调用的消息与温度
type fakeChatModel struct {
	mu       sync.Mutex
	reply    string
	err      error
	calls    int
	messages [][]client.Message
	temps    []float64
}

func (f *fakeChatModel) Chat(ctx context.Context, messages []client.Message, temperature float64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.messages = append(f.messages, messages)
	f.temps = append(f.temps, temperature)
	return f.reply, f.err
}

type fakeStore struct {
	records []model.KnowledgeRecord
	err     error
	queries []knowledgestore.Query
}

func (f *fakeStore) Search(ctx context.Context, q knowledgestore.Query) ([]model.KnowledgeRecord, error) {
	f.queries = append(f.queries, q)
	return f.records, f.err
}

// callLog 记录流水线各阶段的调用顺序
type callLog struct {
	mu    sync.Mutex
	steps []string
}

func (l *callLog) add(step string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.steps = append(l.steps, step)
}

func (l *callLog) list() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.steps...)
}

type fakeObserver struct {
	log   *callLog
	text  string
	err   error
	calls int
	urls  []string
}

func (f *fakeObserver) Observe(ctx context.Context, imageURL string) (string, error) {
	f.log.add("observe")
	f.calls++
	f.urls = append(f.urls, imageURL)
	return f.text, f.err
}

type fakeRetriever struct {
	log     *callLog
	records []model.KnowledgeRecord
	err     error
	block   bool
	calls   int
	args    [][2]string
}

func (f *fakeRetriever) Search(ctx context.Context, message, species string) ([]model.KnowledgeRecord, error) {
	f.log.add("retrieve")
	f.calls++
	f.args = append(f.args, [2]string{message, species})
	if f.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return f.records, f.err
}

type fakeComposer struct {
	log   *callLog
	err   error
	calls int
	input ComposeInput
}

func (f *fakeComposer) Compose(ctx context.Context, in ComposeInput) (model.ComposedAnswer, error) {
	f.log.add("compose")
	f.calls++
	f.input = in
	if f.err != nil {
		return model.ComposedAnswer{}, f.err
	}
	ids := make([]int64, 0, len(in.Hits))
	for _, h := range in.Hits {
		ids = append(ids, h.ID)
	}
	return model.ComposedAnswer{Text: "ok", UsedKnowledgeBase: len(in.Hits) > 0, KnowledgeRecordIDs: ids}, nil
}

// fakeBlobStore 内存对象存储，可注入冲突与错误
type fakeBlobStore struct {
	objects   map[string][]byte
	types     map[string]string
	conflicts int
	putErr    error
	signErr   error
	blockPut  bool
	blockSign bool
	puts      []string
	ttls      []time.Duration
	deadlines []bool
}

func newFakeBlobStore() *fakeBlobStore {
	return &fakeBlobStore{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeBlobStore) Put(ctx context.Context, path string, body []byte, contentType string) error {
	f.puts = append(f.puts, path)
	f.recordDeadline(ctx)
	if f.blockPut {
		<-ctx.Done()
		return ctx.Err()
	}
	if f.putErr != nil {
		return f.putErr
	}
	if f.conflicts > 0 {
		f.conflicts--
		return storageConflict(path)
	}
	if _, ok := f.objects[path]; ok {
		return storageConflict(path)
	}
	f.objects[path] = body
	f.types[path] = contentType
	return nil
}

func (f *fakeBlobStore) SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error) {
	f.ttls = append(f.ttls, ttl)
	f.recordDeadline(ctx)
	if f.blockSign {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if f.signErr != nil {
		return "", f.signErr
	}
	return "https://storage.example/" + path + "?token=signed", nil
}

func (f *fakeBlobStore) recordDeadline(ctx context.Context) {
	_, ok := ctx.Deadline()
	f.deadlines = append(f.deadlines, ok)
}

func storageConflict(path string) error {
	return fmt.Errorf("%w: %s", storage.ErrObjectExists, path)
}
