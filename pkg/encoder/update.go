package encoder

// Update reads one raw sample and advances the estimator by one control period.
// It returns the error flag that stopped the update, advisory errors are only recorded.
func (e *Encoder) Update() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	delta, err := e.decode()
	if err != nil {
		return err
	}

	e.applyDelta(delta)
	snapped := e.runPLL()
	e.interpolate(delta, snapped)
	return nil
}
