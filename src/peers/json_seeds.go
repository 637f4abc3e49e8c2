package peers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"path/filepath"
	"sync"
)

const jsonSeedsPath = "peers.json"

// JSONSeeds reads and writes the list of seed addresses kept in the peers.json
// file of a data directory. The file holds a JSON array of "ip:port" strings
// so that human operators can edit it.
type JSONSeeds struct {
	l    sync.Mutex
	path string
}

// NewJSONSeeds creates a JSONSeeds for the peers.json file in base.
func NewJSONSeeds(base string) *JSONSeeds {
	return &JSONSeeds{
		path: filepath.Join(base, jsonSeedsPath),
	}
}

// Seeds returns the addresses listed in the file. An empty file yields no
// addresses and no error.
func (j *JSONSeeds) Seeds() ([]Address, error) {
	j.l.Lock()
	defer j.l.Unlock()

	buf, err := ioutil.ReadFile(j.path)
	if err != nil {
		return nil, err
	}

	if len(bytes.TrimSpace(buf)) == 0 {
		return nil, nil
	}

	var entries []string
	dec := json.NewDecoder(bytes.NewReader(buf))
	if err := dec.Decode(&entries); err != nil {
		return nil, err
	}

	res := make([]Address, 0, len(entries))
	for _, e := range entries {
		addr, err := ParseAddressString(e)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", j.path, err)
		}
		res = append(res, addr)
	}
	return res, nil
}

// SetSeeds overwrites the file with addrs.
func (j *JSONSeeds) SetSeeds(addrs []Address) error {
	j.l.Lock()
	defer j.l.Unlock()

	entries := make([]string, 0, len(addrs))
	for _, a := range addrs {
		entries = append(entries, a.String())
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "\t")
	if err := enc.Encode(entries); err != nil {
		return err
	}

	return ioutil.WriteFile(j.path, buf.Bytes(), 0644)
}
