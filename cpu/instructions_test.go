package cpu_test

import (
	"testing"

	"github.com/beevik/go65link/cpu"
)

func TestOpcodeRoundTrip(t *testing.T) {
	set := cpu.GetInstructionSet()
	seen := 0
	for op := 0; op < 256; op++ {
		inst := set.Lookup(byte(op))
		if !inst.Defined {
			continue
		}
		seen++
		got, ok := set.Opcode(inst.Mnemonic, inst.Mode)
		if !ok || got != byte(op) {
			t.Errorf("%s %s: exp $%02X, got $%02X (ok=%v)", inst.Name, inst.Mode, op, got, ok)
		}
		if int(inst.Length) != 1+inst.Mode.OperandLength() {
			t.Errorf("%s %s: length %d", inst.Name, inst.Mode, inst.Length)
		}
	}
	if seen != 196 {
		t.Errorf("defined opcodes: exp 196, got %d", seen)
	}
}

func TestEncode(t *testing.T) {
	set := cpu.GetInstructionSet()

	var tests = []struct {
		m      cpu.Mnemonic
		mode   cpu.Mode
		opcode byte
		used   cpu.Mode
		ok     bool
	}{
		{cpu.LDA, cpu.IMM, 0xa9, cpu.IMM, true},
		{cpu.LDA, cpu.ZPG, 0xa5, cpu.ZPG, true},
		{cpu.LDA, cpu.ABY, 0xb9, cpu.ABY, true},
		{cpu.LDA, cpu.ZPY, 0, cpu.ZPY, false},
		{cpu.LDX, cpu.ZPY, 0xb6, cpu.ZPY, true},
		{cpu.ASL, cpu.IMP, 0x0a, cpu.IMP, true},
		{cpu.JMP, cpu.ABS, 0x4c, cpu.ABS, true},
		{cpu.JMP, cpu.IND, 0x6c, cpu.IND, true},
		{cpu.BNE, cpu.ABS, 0xd0, cpu.REL, true},
		{cpu.BNE, cpu.ZPG, 0xd0, cpu.REL, true},
		{cpu.BRA, cpu.REL, 0x80, cpu.REL, true},
		{cpu.BNE, cpu.ABX, 0, cpu.ABX, false},
		{cpu.BNE, cpu.IMP, 0, cpu.IMP, false},
		{cpu.JSR, cpu.ZPG, 0, cpu.ZPG, false},
		{cpu.STP, cpu.IMP, 0xdb, cpu.IMP, true},
		{cpu.SMB7, cpu.ZPG, 0xf7, cpu.ZPG, true},
	}

	for _, tt := range tests {
		opcode, used, ok := set.Encode(tt.m, tt.mode)
		if ok != tt.ok {
			t.Errorf("%s %s: exp ok=%v, got %v", tt.m, tt.mode, tt.ok, ok)
			continue
		}
		if !ok {
			continue
		}
		if opcode != tt.opcode || used != tt.used {
			t.Errorf("%s %s: exp $%02X %s, got $%02X %s", tt.m, tt.mode, tt.opcode, tt.used, opcode, used)
		}
	}
}

func TestIsBranch(t *testing.T) {
	set := cpu.GetInstructionSet()
	for _, m := range []cpu.Mnemonic{cpu.BCC, cpu.BCS, cpu.BEQ, cpu.BMI, cpu.BNE, cpu.BPL, cpu.BRA, cpu.BVC, cpu.BVS} {
		if !set.IsBranch(m) {
			t.Errorf("%s should be a branch", m)
		}
	}
	for _, m := range []cpu.Mnemonic{cpu.JMP, cpu.JSR, cpu.LDA, cpu.NOP} {
		if set.IsBranch(m) {
			t.Errorf("%s should not be a branch", m)
		}
	}
}

func TestParseMnemonic(t *testing.T) {
	if m, ok := cpu.ParseMnemonic("lda"); !ok || m != cpu.LDA {
		t.Errorf("lda: got %v %v", m, ok)
	}
	if m, ok := cpu.ParseMnemonic("Rmb3"); !ok || m != cpu.RMB3 {
		t.Errorf("Rmb3: got %v %v", m, ok)
	}
	if _, ok := cpu.ParseMnemonic("bbr0"); ok {
		t.Error("bbr0 should not parse")
	}
	if _, ok := cpu.ParseMnemonic("foo"); ok {
		t.Error("foo should not parse")
	}
}

func TestUnusedOpcodes(t *testing.T) {
	set := cpu.GetInstructionSet()

	var tests = []struct {
		opcode byte
		length byte
	}{
		{0x03, 1},
		{0x02, 2},
		{0x5c, 3},
		{0x0f, 3},
	}
	for _, tt := range tests {
		inst := set.Lookup(tt.opcode)
		if inst.Defined || inst.Name != "???" || inst.Length != tt.length {
			t.Errorf("$%02X: got %s len %d", tt.opcode, inst.Name, inst.Length)
		}
	}
}

func TestFlatMemory(t *testing.T) {
	m := cpu.NewFlatMemory()
	m.StoreBytes(0xfffe, []byte{0x34, 0x12, 0x99})
	if v := m.LoadAddress(0xfffe); v != 0x1234 {
		t.Errorf("LoadAddress: exp $1234, got $%04X", v)
	}
	if v := m.LoadByte(0x0000); v != 0 {
		t.Errorf("StoreBytes wrapped: got $%02X at $0000", v)
	}
	b := make([]byte, 4)
	m.LoadBytes(0xfffe, b)
	if b[0] != 0x34 || b[1] != 0x12 || b[2] != 0 || b[3] != 0 {
		t.Errorf("LoadBytes: got % X", b)
	}
}
