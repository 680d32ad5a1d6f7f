package engine

// Offsets are percentages of the stage container.
const (
	MinOffset   = -40.0
	MaxOffset   = 40.0
	DefaultStep = 6.0
)

// Clamp saturates v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return max(lo, min(hi, v))
}

// MovePosition applies the payload's button step and raw deltas to cur.
func MovePosition(cur Position, p Payload) Position {
	step := DefaultStep
	if p.Step != nil {
		step = *p.Step
	}

	var buttonDx, buttonDy float64
	switch p.Button {
	case "right":
		buttonDx = step
	case "left":
		buttonDx = -step
	case "down":
		buttonDy = step
	case "up":
		buttonDy = -step
	}

	dx := p.DX + buttonDx
	dy := p.DY + buttonDy

	return Position{
		X: Clamp(cur.X+dx, MinOffset, MaxOffset),
		Y: Clamp(cur.Y+dy, MinOffset, MaxOffset),
	}
}
