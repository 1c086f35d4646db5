// Package shaders embeds the point sprite shader sources for the OpenGL
// and WebGPU backends.
package shaders

import (
	_ "embed"
)

//go:embed sprite.vert
var SpriteVert string

//go:embed sprite.frag
var SpriteFrag string

//go:embed sprite_cmyk.frag
var SpriteCMYKFrag string

//go:embed sprite.wgsl
var SpriteWGSL string
