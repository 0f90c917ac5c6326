package session

import (
	"context"
	"testing"
	"time"

	"github.com/cpenlink/cpenlink-go/pkg/ble"
)

func TestRefresherRefreshesExpiredValue(t *testing.T) {
	adapter, cfg := testRefreshSetup()
	sess := New(adapter, cfg)
	conn := connect(t, sess, adapter, "111111", "cpen-001")

	if _, err := sess.GetValue(context.Background()); err != nil {
		t.Fatalf("GetValue failed: %v", err)
	}

	refresher := NewRefresher(sess, 30*time.Millisecond)
	refresher.Start(context.Background())
	defer refresher.Stop()

	// The short CacheTTL expires before the refresher ticks, so the
	// tick must issue a fresh setTime+getTotp pair.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, getTotps := commandPairs(conn); getTotps >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("refresher never refetched the value")
}

func TestRefresherIdleWhenDisconnected(t *testing.T) {
	adapter, cfg := testRefreshSetup()
	sess := New(adapter, cfg)

	refresher := NewRefresher(sess, 20*time.Millisecond)
	refresher.Start(context.Background())
	defer refresher.Stop()

	time.Sleep(100 * time.Millisecond)

	if adapter.ScanCalls() != 0 {
		t.Errorf("refresher scanned while disconnected: %d scans", adapter.ScanCalls())
	}
}

func TestRefresherStopIsIdempotent(t *testing.T) {
	adapter, cfg := testRefreshSetup()
	sess := New(adapter, cfg)

	refresher := NewRefresher(sess, time.Hour)
	refresher.Start(context.Background())
	refresher.Stop()
	refresher.Stop()

	// Restart works after a stop.
	refresher.Start(context.Background())
	refresher.Stop()
}

func testRefreshSetup() (*ble.FakeAdapter, Config) {
	adapter := ble.NewFakeAdapter("CpenA1 - 00:11:22:33:44:55")
	cfg := testConfig()
	cfg.CacheTTL = 20 * time.Millisecond
	cfg.PushWait = time.Millisecond
	return adapter, cfg
}
