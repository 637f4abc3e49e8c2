package peers

import (
	"fmt"
	"sort"

	"github.com/dgraph-io/badger"
	"github.com/mosaicnetworks/overlay/src/protocol"
	"github.com/sirupsen/logrus"
)

const peerPrefix = "peer"

// BadgerDirectory is a Directory persisted in a Badger database.
type BadgerDirectory struct {
	db   *badger.DB
	path string
}

// NewBadgerDirectory opens the database in path, creating it if necessary.
func NewBadgerDirectory(path string, logger *logrus.Entry) (*BadgerDirectory, error) {
	opts := badger.DefaultOptions(path).
		WithSyncWrites(false)

	if logger != nil {
		opts = opts.WithLogger(logger.WithField("ns", "badger"))
	} else {
		opts = opts.WithLogger(nil)
	}

	handle, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	return &BadgerDirectory{
		db:   handle,
		path: path,
	}, nil
}

/*******************************************************************************
Keys
*******************************************************************************/

// ip and port are zero-padded so that keys sort like addresses.
func peerKey(addr Address) []byte {
	return []byte(fmt.Sprintf("%s_%03d.%03d.%03d.%03d:%05d",
		peerPrefix, addr.IP[0], addr.IP[1], addr.IP[2], addr.IP[3], addr.Port))
}

/*******************************************************************************
Implement the Directory interface
*******************************************************************************/

// TopPeers implements the Directory interface.
func (d *BadgerDirectory) TopPeers(limit int) ([]Address, error) {
	records, err := d.Records()
	if err != nil {
		return nil, err
	}
	return topAddresses(records, limit), nil
}

// AddPeer implements the Directory interface.
func (d *BadgerDirectory) AddPeer(addr Address) error {
	return d.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(peerKey(addr))
		if err == nil {
			return nil
		}
		if err != badger.ErrKeyNotFound {
			return err
		}
		return setRecord(txn, Record{Address: addr})
	})
}

// MarkFailure implements the Directory interface.
func (d *BadgerDirectory) MarkFailure(addr Address) error {
	return d.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, addr)
		if err == badger.ErrKeyNotFound {
			rec = Record{Address: addr}
		} else if err != nil {
			return err
		}
		rec.NumFailures++
		return setRecord(txn, rec)
	})
}

// MarkSuccess implements the Directory interface.
func (d *BadgerDirectory) MarkSuccess(addr Address) error {
	return d.db.Update(func(txn *badger.Txn) error {
		rec, err := getRecord(txn, addr)
		if err == badger.ErrKeyNotFound {
			return nil
		} else if err != nil {
			return err
		}
		if rec.NumFailures == 0 {
			return nil
		}
		rec.NumFailures = 0
		return setRecord(txn, rec)
	})
}

// Records implements the Directory interface.
func (d *BadgerDirectory) Records() ([]Record, error) {
	res := []Record{}
	err := d.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		prefix := []byte(peerPrefix + "_")

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var rec Record
			if err := protocol.Unmarshal(val, &rec); err != nil {
				return fmt.Errorf("corrupt record %s: %v", it.Item().Key(), err)
			}
			res = append(res, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Sort(ByQuality(res))
	return res, nil
}

// Close implements the Directory interface.
func (d *BadgerDirectory) Close() error {
	return d.db.Close()
}

/*******************************************************************************
DB Methods
*******************************************************************************/

func getRecord(txn *badger.Txn, addr Address) (Record, error) {
	item, err := txn.Get(peerKey(addr))
	if err != nil {
		return Record{}, err
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return Record{}, err
	}
	var rec Record
	if err := protocol.Unmarshal(val, &rec); err != nil {
		return Record{}, err
	}
	return rec, nil
}

func setRecord(txn *badger.Txn, rec Record) error {
	val, err := protocol.Marshal(rec)
	if err != nil {
		return err
	}
	return txn.Set(peerKey(rec.Address), val)
}
