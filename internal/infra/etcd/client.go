package etcd

import (
	"fmt"
	"net/url"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

// KeyRoot is the root under which every key of this service lives.
const KeyRoot = "/waphl/"

func NewClient(endpoints []string, timeout time.Duration) (*clientv3.Client, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd %v: %w", endpoints, err)
	}
	return cli, nil
}

// pipelineDir escapes a pipeline name so that "terra/prod" cannot be read as
// a parent of another pipeline's keys.
func pipelineDir(root, pipeline string) string {
	return root + url.PathEscape(pipeline) + "/"
}
