package device

import "slices"

// Filter returns the devices selected by the friendly-name and room-name
// allow-lists.
//
// When both lists are empty every device is returned. Otherwise a device is
// kept when its friendly name appears in the friendly-name list or its room
// name appears in the room list. Input order is preserved.
func Filter(devices []Device, friendlyNames, roomNames []string) []Device {
	if len(friendlyNames) == 0 && len(roomNames) == 0 {
		return slices.Clone(devices)
	}

	out := make([]Device, 0, len(devices))
	for _, d := range devices {
		if slices.Contains(friendlyNames, d.FriendlyName) ||
			(d.RoomName != "" && slices.Contains(roomNames, d.RoomName)) {
			out = append(out, d)
		}
	}
	return out
}
