package strategy

// StateMachine tracks FLAT/OPEN. Events that do not apply to the current
// state leave it unchanged.
type StateMachine struct {
	State State
}

func NewStateMachine() *StateMachine {
	return &StateMachine{State: StateFlat}
}

func (s *StateMachine) Apply(event Event) State {
	s.State = nextState(s.State, event)
	return s.State
}

func nextState(current State, event Event) State {
	switch current {
	case StateFlat:
		if event == EventEnter {
			return StateOpen
		}
	case StateOpen:
		if event == EventExit {
			return StateFlat
		}
	}
	return current
}
