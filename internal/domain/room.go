package domain

// RoomID is an opaque identifier chosen by the clients. Rooms are created
// implicitly on first join and disappear when their last member leaves.
type RoomID string
