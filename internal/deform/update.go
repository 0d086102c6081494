package deform

import (
	"context"

	"github.com/Faultbox/bodymorph/internal/logger"
	"github.com/Faultbox/bodymorph/internal/scene"
	"github.com/Faultbox/bodymorph/internal/weights"
	"go.uber.org/zap"
)

// Equipment is the host's view of what a character is wearing.
type Equipment interface {
	// Slots returns the attached node of every equipment slot; empty
	// slots are nil.
	Slots(id weights.CharacterID) []*scene.Node
	// Detach removes a slot's node from the scene so it is rebuilt.
	Detach(id weights.CharacterID, slot int, node *scene.Node)
	// UpdateEquipment rebuilds the character's equipment.
	UpdateEquipment(id weights.CharacterID)
}

// Update asks for a character's morphable equipment to be rebuilt.
type Update struct {
	ID     weights.CharacterID
	Detach bool // Tear off morphable slot nodes first
}

// DefaultQueueSize is the number of updates that may wait at once.
const DefaultQueueSize = 256

// UpdateQueue defers equipment rebuilds off the caller's goroutine.
type UpdateQueue struct {
	equipment Equipment
	updates   chan Update
}

// NewUpdateQueue creates a queue feeding equipment. size <= 0 selects
// DefaultQueueSize.
func NewUpdateQueue(equipment Equipment, size int) *UpdateQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &UpdateQueue{
		equipment: equipment,
		updates:   make(chan Update, size),
	}
}

// Push queues an update without blocking. It returns false when the queue
// is full and the update was dropped.
func (q *UpdateQueue) Push(id weights.CharacterID, detach bool) bool {
	select {
	case q.updates <- Update{ID: id, Detach: detach}:
		return true
	default:
		logger.Named("deform").Warn("update queue full, dropping update",
			zap.Uint32("character", uint32(id)))
		return false
	}
}

// Pending returns the number of queued updates.
func (q *UpdateQueue) Pending() int {
	return len(q.updates)
}

// Run processes updates until ctx is done.
func (q *UpdateQueue) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case u := <-q.updates:
			q.process(u)
		}
	}
}

// Drain processes every queued update on the calling goroutine and returns
// how many were handled.
func (q *UpdateQueue) Drain() int {
	n := 0
	for {
		select {
		case u := <-q.updates:
			q.process(u)
			n++
		default:
			return n
		}
	}
}

func (q *UpdateQueue) process(u Update) {
	if q.equipment == nil {
		return
	}
	logger.Named("deform").Debug("updating equipment",
		zap.Uint32("character", uint32(u.ID)), zap.Bool("detach", u.Detach))

	if u.Detach {
		for slot, node := range q.equipment.Slots(u.ID) {
			if node != nil && IsMorphable(node) {
				q.equipment.Detach(u.ID, slot, node)
			}
		}
	}
	q.equipment.UpdateEquipment(u.ID)
}
