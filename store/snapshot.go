package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sort"
	"time"

	"go-bankledger/models"
)

const snapshotVersion = 1

// Snapshot is the JSON file form of a MemoryStore.
type Snapshot struct {
	Version        int                `json:"version"`
	SavedAt        time.Time          `json:"savedAt"`
	NextCustomerID int64              `json:"nextCustomerId"`
	NextAccountID  int64              `json:"nextAccountId"`
	Customers      []*models.Customer `json:"customers"`
	Accounts       []*models.Account  `json:"accounts"`
}

// Snapshot copies the current contents, ordered by id.
func (s *MemoryStore) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Version:        snapshotVersion,
		NextCustomerID: s.nextCustomerID,
		NextAccountID:  s.nextAccountID,
		Customers:      make([]*models.Customer, 0, len(s.customers)),
		Accounts:       make([]*models.Account, 0, len(s.accounts)),
	}
	for _, c := range s.customers {
		snap.Customers = append(snap.Customers, c.Clone())
	}
	for _, a := range s.accounts {
		snap.Accounts = append(snap.Accounts, a.Clone())
	}
	sort.Slice(snap.Customers, func(i, j int) bool { return snap.Customers[i].ID < snap.Customers[j].ID })
	sort.Slice(snap.Accounts, func(i, j int) bool { return snap.Accounts[i].ID < snap.Accounts[j].ID })
	return snap
}

// Restore replaces the contents with snap. Accounts whose owner is missing
// from the snapshot are dropped, and each customer's account list is rebuilt
// from the accounts that name it as owner.
func (s *MemoryStore) Restore(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.customers = make(map[int64]*models.Customer, len(snap.Customers))
	s.customerByDNI = make(map[string]int64, len(snap.Customers))
	s.accounts = make(map[string]*models.Account, len(snap.Accounts))
	s.nextCustomerID = snap.NextCustomerID
	s.nextAccountID = snap.NextAccountID

	for _, c := range snap.Customers {
		restored := c.Clone()
		restored.AccountNumbers = nil
		s.putCustomer(restored)
		if c.ID > s.nextCustomerID {
			s.nextCustomerID = c.ID
		}
	}

	accounts := slices.Clone(snap.Accounts)
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].ID < accounts[j].ID })
	for _, a := range accounts {
		owner, ok := s.customers[a.CustomerID]
		if !ok {
			continue
		}
		s.accounts[a.Number] = a.Clone()
		owner.AddAccountNumber(a.Number)
		if a.ID > s.nextAccountID {
			s.nextAccountID = a.ID
		}
	}
}

// LoadSnapshot reads a snapshot file. A missing file yields an empty
// snapshot and no error.
func LoadSnapshot(path string) (Snapshot, error) {
	var snap Snapshot
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Snapshot{Version: snapshotVersion}, nil
	}
	if err != nil {
		return snap, err
	}
	defer f.Close()
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return snap, fmt.Errorf("decode snapshot %s: %w", path, err)
	}
	if snap.Version != snapshotVersion {
		return snap, fmt.Errorf("snapshot %s: unsupported version %d", path, snap.Version)
	}
	return snap, nil
}

// SaveSnapshot writes snap next to path and renames it into place.
func SaveSnapshot(path string, snap Snapshot) error {
	snap.Version = snapshotVersion
	snap.SavedAt = time.Now().UTC()
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
