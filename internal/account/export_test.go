package account

// LockedAccounts reports how many accounts hold an in-process lock slot.
func (e *Engine) LockedAccounts() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return len(e.slots)
}
