package discovery

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/hdds-io/hdds/pkg/guid"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes/fake"
)

func TestK8sDnsSeedsResolvesEndpointAddresses(t *testing.T) {
	eps := &corev1.Endpoints{
		ObjectMeta: metav1.ObjectMeta{Name: "hdds-seeds", Namespace: "rtps"},
		Subsets: []corev1.EndpointSubset{
			{Addresses: []corev1.EndpointAddress{{IP: "10.1.2.3"}, {IP: "10.1.2.4"}}},
		},
	}
	client := fake.NewSimpleClientset(eps)
	src := NewK8sDns(client, "hdds-seeds", "rtps", 7400, time.Second)

	seeds, err := src.Seeds(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(seeds) != 2 {
		t.Fatalf("expected 2 seeds, got %d: %v", len(seeds), seeds)
	}
	if seeds[0].Port != 7400 {
		t.Fatalf("expected configured RTPS port, got %d", seeds[0].Port)
	}
}

func TestK8sDnsSeedsMissingServiceErrors(t *testing.T) {
	client := fake.NewSimpleClientset()
	src := NewK8sDns(client, "missing", "rtps", 7400, time.Second)
	if _, err := src.Seeds(context.Background()); err == nil {
		t.Fatalf("expected error resolving a nonexistent Endpoints object")
	}
}

func TestK8sDnsPollDeliversOnTickAndStopsOnCancel(t *testing.T) {
	eps := &corev1.Endpoints{
		ObjectMeta: metav1.ObjectMeta{Name: "hdds-seeds", Namespace: "rtps"},
		Subsets:    []corev1.EndpointSubset{{Addresses: []corev1.EndpointAddress{{IP: "10.0.0.1"}}}},
	}
	client := fake.NewSimpleClientset(eps)
	src := NewK8sDns(client, "hdds-seeds", "rtps", 7400, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 35*time.Millisecond)
	defer cancel()

	var mu sync.Mutex
	deliveries := 0
	var last []guid.Locator
	done := make(chan struct{})
	go func() {
		src.Poll(ctx, func(seeds []guid.Locator) {
			mu.Lock()
			deliveries++
			last = seeds
			mu.Unlock()
		})
		close(done)
	}()
	<-done

	mu.Lock()
	defer mu.Unlock()
	if deliveries == 0 {
		t.Fatalf("expected at least one delivery before context expired")
	}
	if len(last) != 1 {
		t.Fatalf("expected 1 seed delivered, got %d", len(last))
	}
}
