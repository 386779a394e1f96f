package export

import (
	"encoding/json"
	"io"

	"github.com/san-kum/swarmlab/internal/snapshot"
)

type EntityData struct {
	ID       uint64     `json:"id"`
	Position [3]float64 `json:"position"`
	Forward  [3]float64 `json:"forward"`
	Color    string     `json:"color"`
	Alpha    float64    `json:"alpha"`
	Size     float64    `json:"size"`
}

type SnapshotData struct {
	Mode     string       `json:"mode"`
	Seed     uint32       `json:"seed"`
	Step     uint64       `json:"step"`
	Entities []EntityData `json:"entities"`
	Food     []EntityData `json:"food,omitempty"`
}

// SnapshotJSON writes snap as indented JSON.
func SnapshotJSON(w io.Writer, mode string, seed uint32, snap *snapshot.Snapshot) error {
	data := SnapshotData{
		Mode:     mode,
		Seed:     seed,
		Step:     snap.Step,
		Entities: convert(snap.Entities),
		Food:     convert(snap.Food),
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func convert(ds []snapshot.Drawable) []EntityData {
	if len(ds) == 0 {
		return nil
	}
	out := make([]EntityData, len(ds))
	for i, d := range ds {
		out[i] = EntityData{
			ID:       d.ID,
			Position: [3]float64{d.Position.X, d.Position.Y, d.Position.Z},
			Forward:  [3]float64{d.Forward.X, d.Forward.Y, d.Forward.Z},
			Color:    d.Color.Clamped().Hex(),
			Alpha:    d.Alpha,
			Size:     d.Size,
		}
	}
	return out
}
