package peers

import (
	"sort"
	"sync"
)

// Directory is a store of known peer addresses.
type Directory interface {
	// TopPeers returns at most limit addresses, fewest failures first.
	TopPeers(limit int) ([]Address, error)
	// AddPeer records addr. Adding a known address is a no-op.
	AddPeer(addr Address) error
	// MarkFailure increments the failure count of addr, adding it if needed.
	MarkFailure(addr Address) error
	// MarkSuccess resets the failure count of a known addr.
	MarkSuccess(addr Address) error
	Records() ([]Record, error)
	Close() error
}

// Record is what a Directory keeps about an address.
type Record struct {
	Address     Address
	NumFailures uint32
}

// ByQuality implements sort.Interface for Records: fewest failures first, then
// by address.
type ByQuality []Record

func (a ByQuality) Len() int      { return len(a) }
func (a ByQuality) Swap(i, j int) { a[i], a[j] = a[j], a[i] }
func (a ByQuality) Less(i, j int) bool {
	if a[i].NumFailures != a[j].NumFailures {
		return a[i].NumFailures < a[j].NumFailures
	}
	return a[i].Address.Less(a[j].Address)
}

func topAddresses(records []Record, limit int) []Address {
	sort.Sort(ByQuality(records))
	if limit < 0 {
		limit = 0
	}
	if len(records) > limit {
		records = records[:limit]
	}
	res := make([]Address, 0, len(records))
	for _, r := range records {
		res = append(res, r.Address)
	}
	return res
}

// InmemDirectory is a Directory held in memory.
type InmemDirectory struct {
	sync.RWMutex
	records map[Address]uint32
}

// NewInmemDirectory creates an empty InmemDirectory.
func NewInmemDirectory() *InmemDirectory {
	return &InmemDirectory{
		records: make(map[Address]uint32),
	}
}

// TopPeers implements the Directory interface.
func (d *InmemDirectory) TopPeers(limit int) ([]Address, error) {
	records, _ := d.Records()
	return topAddresses(records, limit), nil
}

// AddPeer implements the Directory interface.
func (d *InmemDirectory) AddPeer(addr Address) error {
	d.Lock()
	defer d.Unlock()

	if _, ok := d.records[addr]; !ok {
		d.records[addr] = 0
	}
	return nil
}

// MarkFailure implements the Directory interface.
func (d *InmemDirectory) MarkFailure(addr Address) error {
	d.Lock()
	defer d.Unlock()

	d.records[addr]++
	return nil
}

// MarkSuccess implements the Directory interface.
func (d *InmemDirectory) MarkSuccess(addr Address) error {
	d.Lock()
	defer d.Unlock()

	if _, ok := d.records[addr]; ok {
		d.records[addr] = 0
	}
	return nil
}

// Records implements the Directory interface.
func (d *InmemDirectory) Records() ([]Record, error) {
	d.RLock()
	defer d.RUnlock()

	res := make([]Record, 0, len(d.records))
	for addr, failures := range d.records {
		res = append(res, Record{Address: addr, NumFailures: failures})
	}
	sort.Sort(ByQuality(res))
	return res, nil
}

// Close implements the Directory interface.
func (d *InmemDirectory) Close() error {
	return nil
}
