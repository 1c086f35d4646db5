// Package pointfield renders arrays of 3-D positions as screen-space point
// sprites shaded to look like spheres. A Renderer owns a GPU-resident
// position buffer and two shader variants (standard RGB and CMYK ink
// separation) and issues point draws given model/view/projection transforms.
//
// The graphics API is abstracted behind the Device interface. Two backends
// are provided: OpenGL (GLDevice) and WebGPU (WGPUDevice). All calls must
// run on the thread that owns the graphics context.
package pointfield
