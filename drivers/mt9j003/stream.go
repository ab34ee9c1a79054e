package mt9j003

// SetStream drives the streaming state machine.
//
// Enabling powers the sensor, strobes reset, waits StreamSettle, sets the
// PLL, loads the recommended register table and output encoding, seeds
// integration time and gains, programs the current window and finally starts
// parallel streaming. A failure leaves the state Configuring so the caller
// can retry the enable without probing again; after StreamRetries
// consecutive failures ErrRetryLimit is returned without bus traffic until
// the stream is disabled.
//
// Disabling is a single write to RESET_REGISTER. Power stays on.
func (d *Device) SetStream(enable bool) error {
	if d.i2c == nil {
		return ErrNotReady
	}
	if !enable {
		if err := d.writeReg(regResetRegister, resetStreamOff); err != nil {
			return err
		}
		d.resetBase = resetStreamOff
		d.stream = StreamIdle
		d.enableFailures = 0
		return nil
	}

	if d.stream == StreamStreaming {
		return nil
	}
	if d.enableFailures >= d.cfg.StreamRetries {
		return ErrRetryLimit
	}
	if err := d.PowerOn(); err != nil {
		return err
	}
	d.stream = StreamConfiguring
	if err := d.enableSequence(); err != nil {
		d.enableFailures++
		return err
	}
	d.stream = StreamStreaming
	d.enableFailures = 0
	return nil
}

func (d *Device) enableSequence() error {
	if err := d.writeReg(regResetRegister, resetStrobe); err != nil {
		return err
	}
	d.sleep(d.cfg.StreamSettle)

	// Enable streaming / reset config
	if err := d.writeReg(regResetRegister, resetStreamParallel); err != nil {
		return err
	}
	d.resetBase = resetStreamParallel

	if err := d.configurePLL(); err != nil {
		return err
	}
	if err := d.writeReg(regAnalogControl, analogControlValue); err != nil {
		return err
	}
	if err := d.writeRegs(recommendedRegs[:]); err != nil {
		return err
	}
	if err := d.writeRegs(encodingRegs[:]); err != nil {
		return err
	}

	// Exposure seed. In automatic mode the gains restart from the default.
	if d.autoExposure {
		for ch := range d.gainRaw {
			d.gainRaw[ch] = defaultGainRaw
			d.gain[ch] = DecodeGain(defaultGainRaw)
		}
	}
	seed := [...]regValue{
		{regCoarseIntTime, d.cfg.CoarseIntegration},
		{gainRegs[GainGreen1], d.gainRaw[GainGreen1]},
		{gainRegs[GainBlue], d.gainRaw[GainBlue]},
		{gainRegs[GainRed], d.gainRaw[GainRed]},
		{gainRegs[GainGreen2], d.gainRaw[GainGreen2]},
	}
	if err := d.writeRegs(seed[:]); err != nil {
		return err
	}

	// Setup sensor readout
	if err := d.applyWindow(d.window); err != nil {
		return err
	}

	// Enable parallel streaming
	return d.writeReg(regResetRegister, resetStreamParallel)
}
