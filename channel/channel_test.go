package channel

import (
	"context"
	"testing"

	"go.viam.com/test"
	"golang.org/x/sync/errgroup"
)

func TestRecvFIFO(t *testing.T) {
	c := New[int]()
	r := c.OpenReceiver(4)
	s := c.Sender()

	_, ok := r.Recv()
	test.That(t, ok, test.ShouldBeFalse)
	test.That(t, r.HasData(), test.ShouldBeFalse)

	s.Send(1)
	s.Send(2)
	test.That(t, r.Len(), test.ShouldEqual, 2)

	v, ok := r.Inspect()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, 1)
	test.That(t, r.Len(), test.ShouldEqual, 2)

	v, ok = r.Recv()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, 1)
	test.That(t, r.RecvOr(-1), test.ShouldEqual, 2)
	test.That(t, r.RecvOr(-1), test.ShouldEqual, -1)
}

func TestOverflowDropsOldest(t *testing.T) {
	c := New[int]()
	r := c.OpenReceiver(3)
	s := c.Sender()
	for i := 1; i <= 5; i++ {
		s.Send(i)
	}
	test.That(t, r.Len(), test.ShouldEqual, 3)
	test.That(t, r.Dropped(), test.ShouldEqual, uint64(2))
	test.That(t, r.RecvAll(), test.ShouldResemble, []int{3, 4, 5})
	test.That(t, r.HasData(), test.ShouldBeFalse)
	test.That(t, r.RecvAll(), test.ShouldBeNil)
}

func TestRecvAllAcrossWrap(t *testing.T) {
	c := New[string]()
	r := c.OpenReceiver(4)
	s := c.Sender()
	for _, v := range []string{"a", "b", "c"} {
		s.Send(v)
	}
	r.Recv()
	r.Recv()
	for _, v := range []string{"d", "e", "f"} {
		s.Send(v)
	}
	test.That(t, r.Dropped(), test.ShouldEqual, uint64(0))
	test.That(t, r.RecvAll(), test.ShouldResemble, []string{"c", "d", "e", "f"})

	s.Send("g")
	v, ok := r.Recv()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, "g")
}

func TestBroadcast(t *testing.T) {
	c := New[int]()
	a := c.OpenReceiver(2)
	b := c.OpenReceiver(8)
	s := c.Sender()
	s.Send(1)
	s.Send(2)
	s.Send(3)

	test.That(t, a.RecvAll(), test.ShouldResemble, []int{2, 3})
	test.That(t, b.RecvAll(), test.ShouldResemble, []int{1, 2, 3})
}

func TestCloseOpenFork(t *testing.T) {
	c := New[int]()
	r := c.OpenReceiver(0)
	test.That(t, r.Cap(), test.ShouldEqual, 1)
	test.That(t, c.NumReceivers(), test.ShouldEqual, 1)

	s := c.Sender()
	s.Send(1)
	r.Close()
	r.Close()
	test.That(t, c.NumReceivers(), test.ShouldEqual, 0)
	s.Send(2)
	v, ok := r.Recv()
	test.That(t, ok, test.ShouldBeTrue)
	test.That(t, v, test.ShouldEqual, 1)
	test.That(t, r.HasData(), test.ShouldBeFalse)

	r.Open()
	r.Open()
	test.That(t, c.NumReceivers(), test.ShouldEqual, 1)

	f := r.Fork(4)
	test.That(t, c.NumReceivers(), test.ShouldEqual, 2)
	s.Send(3)
	test.That(t, r.RecvOr(0), test.ShouldEqual, 3)
	test.That(t, f.RecvOr(0), test.ShouldEqual, 3)

	var zero Sender[int]
	zero.Send(4)
}

func TestConcurrentProducers(t *testing.T) {
	const (
		producers = 4
		perWorker = 250
	)
	c := New[int]()
	r := c.OpenReceiver(producers * perWorker)

	g, _ := errgroup.WithContext(context.Background())
	for p := 0; p < producers; p++ {
		s := c.Sender()
		base := p * perWorker
		g.Go(func() error {
			for i := 0; i < perWorker; i++ {
				s.Send(base + i)
			}
			return nil
		})
	}
	test.That(t, g.Wait(), test.ShouldBeNil)

	got := r.RecvAll()
	test.That(t, got, test.ShouldHaveLength, producers*perWorker)
	test.That(t, r.Dropped(), test.ShouldEqual, uint64(0))

	// Each producer's values arrive in the order it sent them.
	last := make(map[int]int)
	for _, v := range got {
		p := v / perWorker
		if prev, ok := last[p]; ok {
			test.That(t, v, test.ShouldBeGreaterThan, prev)
		}
		last[p] = v
	}
}
