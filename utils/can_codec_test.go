package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMap = `direction,frame_id,frame_name,cycle_ms,dlc,signal_name,start_bit,bit_length,endianness,signed,factor,offset,min,max,default,unit,comment
tx,0x120,MOTOR_CMD,10,5,left_duty_pct,0,16,little,true,0.01,0,-100,100,0,%,
tx,0x120,MOTOR_CMD,10,5,right_duty_pct,16,16,little,true,0.01,0,-100,100,0,%,
tx,0x120,MOTOR_CMD,10,5,motor_enable,32,1,little,false,1,0,0,1,0,,
rx,0x320,IMU_STATE,10,5,heading_x16,0,16,little,true,1,0,-32768,32767,0,,
rx,0x320,IMU_STATE,10,5,yaw_rate_x16,16,16,little,true,1,0,-32768,32767,0,,
rx,0x320,IMU_STATE,10,5,calib_stat,32,8,little,false,1,0,0,255,0,,
`

func loadTestMap(t *testing.T) *CANMap {
	t.Helper()
	m, err := ParseCANMap(strings.NewReader(testMap))
	require.NoError(t, err)
	return m
}

func TestParseCANMap(t *testing.T) {
	m := loadTestMap(t)

	fd, err := m.FrameByName("MOTOR_CMD")
	require.NoError(t, err)
	assert.Equal(t, uint32(0x120), fd.ID)
	assert.Equal(t, DirTX, fd.Direction)
	assert.Len(t, fd.Signals, 3)

	assert.NoError(t, m.Require(DirRX, "IMU_STATE"))
	assert.Error(t, m.Require(DirRX, "MOTOR_CMD"))
	assert.Error(t, m.Require(DirTX, "NOPE"))
}

func TestParseCANMap_Rejects(t *testing.T) {
	header := strings.SplitN(testMap, "\n", 2)[0] + "\n"

	tests := []struct {
		name string
		row  string
	}{
		{"bad direction", "up,0x1,X,10,2,a,0,8,little,false,1,0,0,1,0,,\n"},
		{"big endian", "rx,0x1,X,10,2,a,0,8,big,false,1,0,0,1,0,,\n"},
		{"outside payload", "rx,0x1,X,10,1,a,4,8,little,false,1,0,0,1,0,,\n"},
		{"zero factor", "rx,0x1,X,10,2,a,0,8,little,false,0,0,0,1,0,,\n"},
		{"bad dlc", "rx,0x1,X,10,9,a,0,8,little,false,1,0,0,1,0,,\n"},
		{"typo in max", "rx,0x1,X,10,2,a,0,8,little,false,1,0,0,1O0,0,,\n"},
		{"typo in factor", "rx,0x1,X,10,2,a,0,8,little,false,0.0l,0,0,1,0,,\n"},
		{"empty default", "rx,0x1,X,10,2,a,0,8,little,false,1,0,0,1,,,\n"},
		{"bad start bit", "rx,0x1,X,10,2,a,x,8,little,false,1,0,0,1,0,,\n"},
		{"bad signed flag", "rx,0x1,X,10,2,a,0,8,little,maybe,1,0,0,1,0,,\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCANMap(strings.NewReader(header + tt.row))
			assert.Error(t, err)
		})
	}

	_, err := ParseCANMap(strings.NewReader(header + "rx,0x1,X,10,2,a,0,8,little,false,1,0,0,1O0,0,,\n"))
	assert.ErrorContains(t, err, "line 2: frame X: max")

	_, err = ParseCANMap(strings.NewReader("direction,frame_id\n"))
	assert.ErrorContains(t, err, "missing required column")
}

func TestEncodeFrame_ClampsAndScales(t *testing.T) {
	m := loadTestMap(t)

	f, err := m.EncodeFrame("MOTOR_CMD", map[string]float64{
		"left_duty_pct":  -23.0,
		"right_duty_pct": 250, // clamped to 100
		"motor_enable":   1,
	})
	require.NoError(t, err)
	assert.Equal(t, uint8(5), f.Length)

	raw := int16(uint16(f.Data[0]) | uint16(f.Data[1])<<8)
	assert.Equal(t, int16(-2300), raw)
	raw = int16(uint16(f.Data[2]) | uint16(f.Data[3])<<8)
	assert.Equal(t, int16(10000), raw)
	assert.Equal(t, byte(1), f.Data[4]&0x01)
}

func TestDecodeFrame_SignedFixedPoint(t *testing.T) {
	m := loadTestMap(t)

	f, err := m.EncodeFrame("MOTOR_CMD", nil)
	require.NoError(t, err)
	f.ID = 0x320
	// heading -16 (= -1 deg), yaw 480 (= 30 dps), calibration 0xFF
	f.Data = [8]byte{0xF0, 0xFF, 0xE0, 0x01, 0xFF}

	vals, err := m.DecodeFrame(f)
	require.NoError(t, err)
	assert.Equal(t, -16.0, vals["heading_x16"])
	assert.Equal(t, 480.0, vals["yaw_rate_x16"])
	assert.Equal(t, 255.0, vals["calib_stat"])

	f.Length = 2
	_, err = m.DecodeFrame(f)
	assert.Error(t, err)
}
