package pointfield

import (
	"testing"
	"unsafe"
)

// The uniform block is uploaded byte-for-byte, so the Go struct must
// match the WGSL SpriteUniforms layout exactly.
func TestSpriteUniformsMatchesWGSLLayout(t *testing.T) {
	size := unsafe.Sizeof(spriteUniforms{})
	if size != 224 {
		t.Errorf("Expected spriteUniforms to be 224 bytes, got %d", size)
	}
	if size > uniformSlotBytes {
		t.Errorf("Uniform block (%d bytes) does not fit a %d-byte ring slot", size, uniformSlotBytes)
	}

	if off := unsafe.Offsetof(spriteUniforms{}.Colour); off != 192 {
		t.Errorf("Expected colour at offset 192, got %d", off)
	}
	if off := unsafe.Offsetof(spriteUniforms{}.PointSize); off != 208 {
		t.Errorf("Expected point_size at offset 208, got %d", off)
	}
	if off := unsafe.Offsetof(spriteUniforms{}.ScreenWidth); off != 212 {
		t.Errorf("Expected screen_width at offset 212, got %d", off)
	}
}
