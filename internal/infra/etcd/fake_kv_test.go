package etcd

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"

	"go.etcd.io/etcd/api/v3/mvccpb"
	clientv3 "go.etcd.io/etcd/client/v3"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// fakeKV keeps keys in memory and honours single-key and range gets.
// Sort options are ignored; results come back in key order.
type fakeKV struct {
	clientv3.KV

	mu   sync.Mutex
	data map[string]string
	err  error
}

func newFakeKV() *fakeKV {
	return &fakeKV{data: map[string]string{}}
}

func (f *fakeKV) Put(_ context.Context, key, val string, _ ...clientv3.OpOption) (*clientv3.PutResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.data[key] = val
	return &clientv3.PutResponse{}, nil
}

func (f *fakeKV) Get(_ context.Context, key string, opts ...clientv3.OpOption) (*clientv3.GetResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	op := clientv3.OpGet(key, opts...)
	end := string(op.RangeBytes())

	var keys []string
	for k := range f.data {
		if end == "" {
			if k == key {
				keys = append(keys, k)
			}
			continue
		}
		if k >= key && k < end {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	resp := &clientv3.GetResponse{}
	for _, k := range keys {
		kv := &mvccpb.KeyValue{Key: []byte(k)}
		if !op.IsKeysOnly() {
			kv.Value = []byte(f.data[k])
		}
		resp.Kvs = append(resp.Kvs, kv)
	}
	resp.Count = int64(len(resp.Kvs))
	return resp, nil
}
