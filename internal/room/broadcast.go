package room

// Delivery records a failed send to one recipient.
type Delivery struct {
	MemberID string
	Err      error
}

type BroadcastResult struct {
	Delivered int
	Failures  []Delivery
}

func (r BroadcastResult) Failed() int { return len(r.Failures) }

// Broadcast sends payload to each member in order. A failed send is recorded
// and skipped; it never stops delivery to the remaining members.
func Broadcast(members []Member, payload []byte) BroadcastResult {
	var res BroadcastResult
	for _, m := range members {
		if err := m.Send(payload); err != nil {
			res.Failures = append(res.Failures, Delivery{MemberID: m.ID(), Err: err})
			continue
		}
		res.Delivered++
	}
	return res
}
