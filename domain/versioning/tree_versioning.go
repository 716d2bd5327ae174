package versioning

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"nodespace-core/domain/core/aggregates"
	"nodespace-core/domain/core/entities"
	"nodespace-core/domain/core/valueobjects"
	pkgerrors "nodespace-core/pkg/errors"
)

const versioningService = "versioning"

var timeNow = time.Now

// TreeVersion identifies the state of one tree at a point in time
type TreeVersion struct {
	RootID    valueobjects.NodeID `json:"root_id"`
	Checksum  string              `json:"checksum"`
	NodeCount int                 `json:"node_count"`
	Versions  map[string]int      `json:"versions"` // node id -> node version
	CreatedAt time.Time           `json:"created_at"`
}

// ChangeType represents the type of change
type ChangeType string

const (
	ChangeTypeNodeAdded   ChangeType = "node_added"
	ChangeTypeNodeRemoved ChangeType = "node_removed"
	ChangeTypeNodeUpdated ChangeType = "node_updated"
)

// Change is one node that differs between two versions
type Change struct {
	Type   ChangeType          `json:"type"`
	NodeID valueobjects.NodeID `json:"node_id"`
}

// VersionDiff represents the difference between two versions
type VersionDiff struct {
	RootID   valueobjects.NodeID `json:"root_id"`
	Changes  []Change            `json:"changes"`
	TimeDiff time.Duration       `json:"time_diff"`
}

// Empty reports whether the versions describe the same tree state
func (d *VersionDiff) Empty() bool {
	return len(d.Changes) == 0
}

// Count returns the number of changes of the given type
func (d *VersionDiff) Count(t ChangeType) int {
	n := 0
	for _, c := range d.Changes {
		if c.Type == t {
			n++
		}
	}
	return n
}

// Snapshot records the current state of the tree rooted at rootID
func Snapshot(forest *aggregates.Forest, rootID valueobjects.NodeID) (*TreeVersion, error) {
	if forest == nil {
		return nil, pkgerrors.RequiredField(versioningService, "forest", "Snapshot")
	}
	root, ok := forest.Node(rootID)
	if !ok {
		return nil, pkgerrors.UnknownNode(versioningService, rootID.String())
	}
	if !root.IsRoot() {
		return nil, pkgerrors.BusinessRule(versioningService, "snapshots are taken of whole trees").
			WithDetail("node_id", rootID.String())
	}

	nodes := forest.Tree(rootID)
	checksum, err := checksum(nodes)
	if err != nil {
		return nil, err
	}
	versions := make(map[string]int, len(nodes))
	for _, n := range nodes {
		versions[n.ID().String()] = n.Version()
	}
	return &TreeVersion{
		RootID:    rootID,
		Checksum:  checksum,
		NodeCount: len(nodes),
		Versions:  versions,
		CreatedAt: timeNow(),
	}, nil
}

// CompareVersions lists the nodes added, removed or updated between two
// versions of the same tree
func CompareVersions(v1, v2 *TreeVersion) (*VersionDiff, error) {
	if v1 == nil || v2 == nil {
		return nil, pkgerrors.RequiredField(versioningService, "version", "CompareVersions")
	}
	if !v1.RootID.Equals(v2.RootID) {
		return nil, pkgerrors.BusinessRule(versioningService, "versions belong to different trees").
			WithDetail("from_root", v1.RootID.String()).
			WithDetail("to_root", v2.RootID.String())
	}

	diff := &VersionDiff{RootID: v2.RootID, TimeDiff: v2.CreatedAt.Sub(v1.CreatedAt)}
	if v1.Checksum == v2.Checksum {
		return diff, nil
	}

	for _, id := range sortedKeys(v2.Versions) {
		before, ok := v1.Versions[id]
		switch {
		case !ok:
			diff.Changes = append(diff.Changes, change(ChangeTypeNodeAdded, id))
		case before != v2.Versions[id]:
			diff.Changes = append(diff.Changes, change(ChangeTypeNodeUpdated, id))
		}
	}
	for _, id := range sortedKeys(v1.Versions) {
		if _, ok := v2.Versions[id]; !ok {
			diff.Changes = append(diff.Changes, change(ChangeTypeNodeRemoved, id))
		}
	}
	return diff, nil
}

func change(t ChangeType, id string) Change {
	nodeID, _ := valueobjects.ParseNodeID(id)
	return Change{Type: t, NodeID: nodeID}
}

// checksum hashes a deterministic representation of the nodes. Embeddings
// are a derived cache and do not contribute.
func checksum(nodes []*entities.Node) (string, error) {
	type entry struct {
		ID       valueobjects.NodeID `json:"id"`
		ParentID valueobjects.NodeID `json:"parent_id"`
		Content  json.RawMessage     `json:"content"`
		Metadata entities.Metadata   `json:"metadata"`
		Version  int                 `json:"version"`
	}
	entries := make([]entry, 0, len(nodes))
	for _, n := range nodes {
		entries = append(entries, entry{
			ID:       n.ID(),
			ParentID: n.ParentID(),
			Content:  n.Content().Raw(),
			Metadata: n.Metadata(),
			Version:  n.Version(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ID.String() < entries[j].ID.String()
	})

	data, err := json.Marshal(entries)
	if err != nil {
		return "", pkgerrors.SerializationFailed(versioningService, "json", "TreeVersion", err)
	}
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:]), nil
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// VersioningPolicy decides when a new tree version is worth recording
type VersioningPolicy struct {
	AutoVersion          bool          `json:"auto_version"`
	VersionOnChanges     int           `json:"version_on_changes"`
	VersionOnTimeElapsed time.Duration `json:"version_on_time_elapsed"`
}

// DefaultVersioningPolicy returns the default versioning policy
func DefaultVersioningPolicy() VersioningPolicy {
	return VersioningPolicy{
		AutoVersion:          true,
		VersionOnChanges:     100,
		VersionOnTimeElapsed: 24 * time.Hour,
	}
}

// ShouldCreateVersion determines if a new version should be created
func (p *VersioningPolicy) ShouldCreateVersion(last *TreeVersion, current *TreeVersion) bool {
	if !p.AutoVersion || current == nil {
		return false
	}
	if last == nil {
		return true
	}
	diff, err := CompareVersions(last, current)
	if err != nil {
		return true
	}
	if len(diff.Changes) >= p.VersionOnChanges {
		return true
	}
	return !diff.Empty() && diff.TimeDiff >= p.VersionOnTimeElapsed
}
