package mt9j003

// I2C 16-bit register operations (big-endian address and data).

func (d *Device) readReg(reg uint16) (uint16, error) {
	if d.i2c == nil {
		return 0, ErrNotReady
	}
	d.w[0] = byte(reg >> 8)
	d.w[1] = byte(reg)
	if err := d.i2c.Tx(d.addr, d.w[:2], d.r[:2]); err != nil {
		return 0, &TransferError{Op: OpRead, Reg: reg, Err: err}
	}
	return uint16(d.r[0])<<8 | uint16(d.r[1]), nil
}

func (d *Device) writeReg(reg, val uint16) error {
	if d.i2c == nil {
		return ErrNotReady
	}
	d.w[0] = byte(reg >> 8)
	d.w[1] = byte(reg)
	d.w[2] = byte(val >> 8)
	d.w[3] = byte(val)
	if err := d.i2c.Tx(d.addr, d.w[:4], nil); err != nil {
		return &TransferError{Op: OpWrite, Reg: reg, Err: err}
	}
	return nil
}

// writeRegs writes seq in order and stops at the first failure. Earlier
// writes are not rolled back.
func (d *Device) writeRegs(seq []regValue) error {
	for _, rv := range seq {
		if err := d.writeReg(rv.reg, rv.val); err != nil {
			return err
		}
	}
	return nil
}

// ReadRegister reads a raw 16-bit register. Intended for diagnostics.
func (d *Device) ReadRegister(reg uint16) (uint16, error) { return d.readReg(reg) }

// WriteRegister writes a raw 16-bit register. Intended for diagnostics; the
// driver's cached state is not updated.
func (d *Device) WriteRegister(reg, val uint16) error { return d.writeReg(reg, val) }
