package realm

import "errors"

// Validation failures. An action or clause failing with one of these is
// skipped without mutating the world.
var (
	ErrRoomNotPlaying    = errors.New("room is not playing")
	ErrPhaseOrder        = errors.New("phase run out of order")
	ErrInvalidAction     = errors.New("invalid action")
	ErrUnknownPlayer     = errors.New("unknown player")
	ErrUnknownTile       = errors.New("unknown tile")
	ErrUnknownCity       = errors.New("unknown city")
	ErrNotOwner          = errors.New("not the owner")
	ErrInvalidTarget     = errors.New("invalid target")
	ErrFriendlyTarget    = errors.New("target is friendly")
	ErrNoTroops          = errors.New("no troops to move")
	ErrNoPath            = errors.New("no path to destination")
	ErrInsufficientGold  = errors.New("insufficient gold")
	ErrInsufficientFood  = errors.New("insufficient food")
	ErrInsufficientStock = errors.New("insufficient specialty stock")
	ErrMissingBuilding   = errors.New("required building missing")
	ErrQueueFull         = errors.New("build queue full")
	ErrMaxLevel          = errors.New("building at max level")
	ErrInvalidTaxRate    = errors.New("tax rate out of range")
	ErrNoProposal        = errors.New("no pending proposal")
	ErrUnknownTrade      = errors.New("unknown trade")
	ErrTradeState        = errors.New("trade not in a respondable state")
	ErrUnknownSpy        = errors.New("unknown spy")
	ErrSpyCooldown       = errors.New("spy still on cooldown")
	ErrUnknownOrder      = errors.New("unknown auto-move order")
	ErrNotBlocked        = errors.New("auto-move order is not blocked")
	ErrNotInBattle       = errors.New("not a participant of that battle")
)
