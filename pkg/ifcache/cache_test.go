package ifcache

import (
	"errors"
	"sync"
	"testing"

	"github.com/vishvananda/netlink"

	"github.com/newtron-network/fpmsyncd/pkg/util"
)

type fakeLister struct {
	mu    sync.Mutex
	links []netlink.Link
	calls int
	err   error
}

func (f *fakeLister) LinkList() ([]netlink.Link, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]netlink.Link(nil), f.links...), nil
}

func (f *fakeLister) add(l netlink.Link) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.links = append(f.links, l)
}

func dummy(index int, name string) netlink.Link {
	return &netlink.Dummy{LinkAttrs: netlink.LinkAttrs{Index: index, Name: name}}
}

func TestCache_Name(t *testing.T) {
	lister := &fakeLister{links: []netlink.Link{
		dummy(1, "lo"),
		dummy(5, "Ethernet0"),
		&netlink.Vrf{LinkAttrs: netlink.LinkAttrs{Index: 1001, Name: "Vrf10"}, Table: 1001},
	}}
	c := New(lister)

	tests := []struct {
		index int
		want  string
	}{
		{1, "lo"},
		{5, "Ethernet0"},
		{1001, "Vrf10"},
	}
	for _, tt := range tests {
		got, err := c.Name(tt.index)
		if err != nil {
			t.Errorf("Name(%d) error = %v", tt.index, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Name(%d) = %q, want %q", tt.index, got, tt.want)
		}
	}
	if lister.calls != 1 {
		t.Errorf("LinkList called %d times, want 1", lister.calls)
	}
}

func TestCache_RefillOnMiss(t *testing.T) {
	lister := &fakeLister{links: []netlink.Link{dummy(5, "Ethernet0")}}
	c := New(lister)
	if _, err := c.Name(5); err != nil {
		t.Fatalf("Name(5) error = %v", err)
	}

	lister.add(dummy(9, "Ethernet8"))
	got, err := c.Name(9)
	if err != nil {
		t.Fatalf("Name(9) after link creation error = %v", err)
	}
	if got != "Ethernet8" {
		t.Errorf("Name(9) = %q", got)
	}
	if lister.calls != 2 {
		t.Errorf("LinkList called %d times, want 2", lister.calls)
	}

	idx, err := c.Index("Ethernet8")
	if err != nil || idx != 9 {
		t.Errorf("Index(Ethernet8) = %d, %v", idx, err)
	}
}

func TestCache_Miss(t *testing.T) {
	c := New(&fakeLister{links: []netlink.Link{dummy(5, "Ethernet0")}})

	if _, err := c.Name(42); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("Name(42) error = %v, want ErrNotFound", err)
	}
	if _, err := c.Index("Vrf99"); !errors.Is(err, util.ErrNotFound) {
		t.Errorf("Index(Vrf99) error = %v, want ErrNotFound", err)
	}
}

func TestCache_ListerError(t *testing.T) {
	boom := errors.New("netlink socket closed")
	c := New(&fakeLister{err: boom})
	if _, err := c.Name(1); !errors.Is(err, boom) {
		t.Errorf("Name(1) error = %v, want %v", err, boom)
	}
}

func TestCache_ConcurrentLookups(t *testing.T) {
	lister := &fakeLister{links: []netlink.Link{dummy(5, "Ethernet0"), dummy(6, "Ethernet4")}}
	c := New(lister)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			index := 5 + i%2
			if _, err := c.Name(index); err != nil {
				t.Errorf("Name(%d) error = %v", index, err)
			}
		}(i)
	}
	wg.Wait()
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}
