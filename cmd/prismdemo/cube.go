package main

import (
	"image"
	"image/color"

	"github.com/andewx/prismvk"
	"github.com/go-gl/mathgl/mgl32"
)

type cubeFace struct {
	normal  mgl32.Vec3
	corners [4]mgl32.Vec3
}

// unit cube centred on the origin, corners wound counter-clockwise seen from outside
var cubeFaces = []cubeFace{
	{mgl32.Vec3{0, 0, 1}, [4]mgl32.Vec3{{-0.5, -0.5, 0.5}, {0.5, -0.5, 0.5}, {0.5, 0.5, 0.5}, {-0.5, 0.5, 0.5}}},
	{mgl32.Vec3{0, 0, -1}, [4]mgl32.Vec3{{0.5, -0.5, -0.5}, {-0.5, -0.5, -0.5}, {-0.5, 0.5, -0.5}, {0.5, 0.5, -0.5}}},
	{mgl32.Vec3{1, 0, 0}, [4]mgl32.Vec3{{0.5, -0.5, 0.5}, {0.5, -0.5, -0.5}, {0.5, 0.5, -0.5}, {0.5, 0.5, 0.5}}},
	{mgl32.Vec3{-1, 0, 0}, [4]mgl32.Vec3{{-0.5, -0.5, -0.5}, {-0.5, -0.5, 0.5}, {-0.5, 0.5, 0.5}, {-0.5, 0.5, -0.5}}},
	{mgl32.Vec3{0, 1, 0}, [4]mgl32.Vec3{{-0.5, 0.5, 0.5}, {0.5, 0.5, 0.5}, {0.5, 0.5, -0.5}, {-0.5, 0.5, -0.5}}},
	{mgl32.Vec3{0, -1, 0}, [4]mgl32.Vec3{{-0.5, -0.5, -0.5}, {0.5, -0.5, -0.5}, {0.5, -0.5, 0.5}, {-0.5, -0.5, 0.5}}},
}

var faceColors = []mgl32.Vec3{
	{0.9, 0.3, 0.3},
	{0.3, 0.9, 0.3},
	{0.3, 0.3, 0.9},
	{0.9, 0.9, 0.3},
	{0.3, 0.9, 0.9},
	{0.9, 0.3, 0.9},
}

var quadUV = [4]mgl32.Vec2{{0, 1}, {1, 1}, {1, 0}, {0, 0}}

// cubeGeometry is 24 vertices, four per face so each face keeps a flat normal.
func cubeGeometry() ([]prismvk.Vertex, []uint32) {
	vertices := make([]prismvk.Vertex, 0, len(cubeFaces)*4)
	indices := make([]uint32, 0, len(cubeFaces)*6)
	for i, face := range cubeFaces {
		base := uint32(len(vertices))
		for c, corner := range face.corners {
			vertices = append(vertices, prismvk.Vertex{
				Position: corner,
				Color:    faceColors[i],
				Normal:   face.normal,
				UV:       quadUV[c],
			})
		}
		indices = append(indices, base, base+1, base+2, base+2, base+3, base)
	}
	return vertices, indices
}

// checkerImage is a size x size grey checkerboard with cell-sized squares.
func checkerImage(size, cell int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	light := color.RGBA{R: 235, G: 235, B: 235, A: 255}
	dark := color.RGBA{R: 120, G: 120, B: 120, A: 255}
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetRGBA(x, y, light)
			} else {
				img.SetRGBA(x, y, dark)
			}
		}
	}
	return img
}
