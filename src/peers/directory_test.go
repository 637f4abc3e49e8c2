package peers

import (
	"fmt"
	"io/ioutil"
	"os"
	"reflect"
	"testing"

	"github.com/mosaicnetworks/overlay/src/common"
)

func testAddress(i int) Address {
	return Address{IP: [4]byte{10, 0, byte(i / 256), byte(i % 256)}, Port: 11625}
}

func initBadgerDirectory(t *testing.T) (*BadgerDirectory, string) {
	dir, err := ioutil.TempDir("", "overlay-peers")
	if err != nil {
		t.Fatal(err)
	}
	d, err := NewBadgerDirectory(dir, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		os.RemoveAll(dir)
		t.Fatal(err)
	}
	return d, dir
}

func testDirectoryOrdering(t *testing.T, d Directory) {
	for i := 0; i < 5; i++ {
		if err := d.AddPeer(testAddress(i)); err != nil {
			t.Fatal(err)
		}
	}

	// 0 fails twice, 3 fails once
	for _, i := range []int{0, 0, 3} {
		if err := d.MarkFailure(testAddress(i)); err != nil {
			t.Fatal(err)
		}
	}

	// re-adding a known address keeps its failures
	if err := d.AddPeer(testAddress(0)); err != nil {
		t.Fatal(err)
	}

	top, err := d.TopPeers(10)
	if err != nil {
		t.Fatal(err)
	}
	expected := []Address{testAddress(1), testAddress(2), testAddress(4), testAddress(3), testAddress(0)}
	if !reflect.DeepEqual(top, expected) {
		t.Fatalf("TopPeers should be %v, not %v", expected, top)
	}

	top, err = d.TopPeers(2)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(top, expected[:2]) {
		t.Fatalf("TopPeers(2) should be %v, not %v", expected[:2], top)
	}

	if err := d.MarkSuccess(testAddress(0)); err != nil {
		t.Fatal(err)
	}
	top, err = d.TopPeers(1)
	if err != nil {
		t.Fatal(err)
	}
	if top[0] != testAddress(0) {
		t.Fatalf("after MarkSuccess, %v should come first, not %v", testAddress(0), top[0])
	}

	// MarkFailure on an unknown address adds it
	if err := d.MarkFailure(testAddress(9)); err != nil {
		t.Fatal(err)
	}
	records, err := d.Records()
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 6 {
		t.Fatalf("directory should have 6 records, not %d", len(records))
	}
}

func TestInmemDirectory(t *testing.T) {
	testDirectoryOrdering(t, NewInmemDirectory())
}

func TestInmemDirectoryTopPeersLimit(t *testing.T) {
	d := NewInmemDirectory()
	for i := 0; i < 200; i++ {
		d.AddPeer(testAddress(i))
	}
	for _, limit := range []int{0, 1, 49, 50, 300} {
		top, _ := d.TopPeers(limit)
		expected := limit
		if expected > 200 {
			expected = 200
		}
		if len(top) != expected {
			t.Fatalf("TopPeers(%d) should return %d addresses, not %d", limit, expected, len(top))
		}
	}
}

func TestBadgerDirectory(t *testing.T) {
	d, dir := initBadgerDirectory(t)
	defer os.RemoveAll(dir)
	defer d.Close()

	testDirectoryOrdering(t, d)
}

func TestBadgerDirectoryReopen(t *testing.T) {
	d, dir := initBadgerDirectory(t)
	defer os.RemoveAll(dir)

	for i := 0; i < 3; i++ {
		if err := d.AddPeer(testAddress(i)); err != nil {
			t.Fatal(err)
		}
	}
	if err := d.MarkFailure(testAddress(0)); err != nil {
		t.Fatal(err)
	}
	before, err := d.Records()
	if err != nil {
		t.Fatal(err)
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	d, err = NewBadgerDirectory(dir, common.NewTestEntry(t, common.TestLogLevel))
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	after, err := d.Records()
	if err != nil {
		t.Fatal(err)
	}

	byAddr := func(rs []Record) map[string]uint32 {
		m := map[string]uint32{}
		for _, r := range rs {
			m[r.Address.String()] = r.NumFailures
		}
		return m
	}
	if !reflect.DeepEqual(byAddr(before), byAddr(after)) {
		t.Fatalf("records should survive reopening: %v, %v", before, after)
	}
}

func TestJSONSeeds(t *testing.T) {
	dir, err := ioutil.TempDir("", "overlay-seeds")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	store := NewJSONSeeds(dir)

	if _, err := store.Seeds(); err == nil {
		t.Fatalf("reading a missing file should fail")
	}

	seeds := []Address{}
	for i := 0; i < 3; i++ {
		seeds = append(seeds, testAddress(i))
	}
	if err := store.SetSeeds(seeds); err != nil {
		t.Fatal(err)
	}

	read, err := store.Seeds()
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(seeds, read) {
		t.Fatalf("seeds should be %v, not %v", seeds, read)
	}

	bad := fmt.Sprintf("[%q]", "not-an-address")
	if err := ioutil.WriteFile(store.path, []byte(bad), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Seeds(); err == nil {
		t.Fatalf("malformed seed should fail")
	}
}
