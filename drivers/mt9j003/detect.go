package mt9j003

// Detect powers the sensor, checks MODEL_ID and powers it off again.
//
// A mismatching or failed read is retried up to Config.DetectRetries times,
// DetectRetryDelay apart, without power cycling. The sensor is left powered
// off in every outcome; SetStream(true) powers it back on.
func (d *Device) Detect() error {
	if err := d.PowerOn(); err != nil {
		return err
	}

	id, err := d.readReg(regModelID)
	for i := 0; (err != nil || id != ChipVersion) && i < d.cfg.DetectRetries; i++ {
		d.sleep(d.cfg.DetectRetryDelay)
		id, err = d.readReg(regModelID)
	}

	if err != nil || id != ChipVersion {
		_ = d.PowerOff() // best effort; the detection failure is what matters
		return &DetectionError{Observed: id, Err: err}
	}
	if err := d.PowerOff(); err != nil {
		return err
	}
	d.model = id
	return nil
}
