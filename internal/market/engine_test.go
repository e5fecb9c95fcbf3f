package market

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type fakeSubscriber struct {
	subscribed [][]string
	err        error
}

func (f *fakeSubscriber) SubscribeAssets(assetIDs []string) error {
	f.subscribed = append(f.subscribed, assetIDs)
	return f.err
}

func testEngine(sub *fakeSubscriber) (*Engine, *capturePublisher) {
	pub := &capturePublisher{}
	store := NewStore(discardLogger())
	det := NewDetector(DetectorConfig{
		MinROIPercent: 0.4,
		MaxAge:        2 * time.Minute,
	}, pub, discardLogger())
	return NewEngine(store, det, sub, discardLogger()), pub
}

func TestHandleNewMarketSubscribes(t *testing.T) {
	sub := &fakeSubscriber{}
	e, _ := testEngine(sub)

	e.HandleNewMarket("cond-1", "q", "", "", []string{"tok-a", "tok-b"}, []string{"Yes", "No"})
	if len(sub.subscribed) != 1 || len(sub.subscribed[0]) != 2 {
		t.Fatalf("subscriptions = %+v, want one call with two assets", sub.subscribed)
	}

	// Empty events are ignored.
	e.HandleNewMarket("", "q", "", "", []string{"tok-c"}, nil)
	e.HandleNewMarket("cond-2", "q", "", "", nil, nil)
	if len(sub.subscribed) != 1 {
		t.Errorf("degenerate events triggered subscriptions: %+v", sub.subscribed)
	}
}

func TestHandleNewMarketToleratesSubscribeFailure(t *testing.T) {
	sub := &fakeSubscriber{err: errors.New("socket down")}
	e, _ := testEngine(sub)

	e.HandleNewMarket("cond-1", "q", "", "", []string{"tok-a"}, []string{"Yes"})
	if e.Store().Len() != 1 {
		t.Error("market not registered when subscription fails")
	}
}

func TestHandleQuoteAnalyzesOnlyWhenFullyQuoted(t *testing.T) {
	e, pub := testEngine(&fakeSubscriber{})
	e.HandleNewMarket("cond-1", "q", "", "", []string{"tok-a", "tok-b"}, []string{"Yes", "No"})

	e.HandleQuote("cond-1", "tok-a", 0.40)
	if pub.count() != 0 {
		t.Fatal("analysis ran on a partially quoted market")
	}
	e.HandleQuote("cond-1", "tok-b", 0.55)
	if pub.count() != 1 {
		t.Errorf("published %d events, want 1", pub.count())
	}
}

func TestHandleResolvedStopsAnalysis(t *testing.T) {
	e, pub := testEngine(&fakeSubscriber{})
	e.HandleNewMarket("cond-1", "q", "", "", []string{"tok-a", "tok-b"}, []string{"Yes", "No"})
	e.HandleQuote("cond-1", "tok-a", 0.40)
	e.HandleQuote("cond-1", "tok-b", 0.55)
	if pub.count() != 1 {
		t.Fatal("setup: expected one opportunity")
	}

	e.HandleResolved("cond-1")
	if got := len(e.Detector().LatestOpportunities()); got != 0 {
		t.Errorf("live opportunities after resolve = %d, want 0", got)
	}

	// Quotes after resolution never re-trigger analysis.
	e.HandleQuote("cond-1", "tok-a", 0.30)
	if pub.count() != 1 {
		t.Errorf("resolved market re-analyzed, events = %d", pub.count())
	}
}

func TestConcurrentQuotesAndEnrichment(t *testing.T) {
	e, _ := testEngine(&fakeSubscriber{})

	// Quotes arrive before metadata, so every market starts as a pending
	// placeholder that the poller goroutine enriches mid-analysis.
	const markets = 50
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := 0; i < markets; i++ {
			tokA := fmt.Sprintf("tok-%d-a", i)
			tokB := fmt.Sprintf("tok-%d-b", i)
			for j := 0; j < 20; j++ {
				e.HandleQuote("", tokA, 0.40)
				e.HandleQuote("", tokB, 0.55)
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < markets; i++ {
			tokA := fmt.Sprintf("tok-%d-a", i)
			for j := 0; j < 20; j++ {
				e.HandleMeta("pending:"+tokA, fmt.Sprintf("question %d", i), "", "",
					[]string{tokA, fmt.Sprintf("tok-%d-b", i)}, []string{"Yes", "No"})
			}
		}
	}()
	wg.Wait()

	if e.Store().Len() == 0 {
		t.Fatal("no markets tracked after concurrent feed")
	}
}

func TestHandleMetaEnrichesPlaceholder(t *testing.T) {
	e, _ := testEngine(&fakeSubscriber{})

	e.HandleQuote("", "tok-x", 0.30)
	e.HandleMeta("pending:tok-x", "real question", "slug", "", []string{"tok-x", "tok-y"}, []string{"Yes", "No"})

	snap := e.Store().Snapshot("pending:tok-x")
	if snap == nil || snap.Question != "real question" {
		t.Errorf("placeholder not enriched: %+v", snap)
	}
}
