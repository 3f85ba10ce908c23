package capture

import "github.com/sgrab/sgrab/screenshot"

const opaque = 255

// mergeCursor blends the cursor image onto the screenshot at the cursor's
// reported position, clipping to the capture bounds. The cursor pixels
// must carry straight (not premultiplied) alpha.
func mergeCursor(shot, cursor *screenshot.Screenshot) {
	cx, cy := cursor.Left(), cursor.Top()
	cw, ch := cursor.Width(), cursor.Height()
	x, y := shot.Left(), shot.Top()
	w, h := shot.Width(), shot.Height()

	if cx >= x+w || cx+cw <= x || cy >= y+h || cy+ch <= y {
		return
	}

	screen := shot.Raw()
	cur := cursor.Raw()

	for row := 0; row < ch; row++ {
		sy := cy + row - y
		if sy < 0 || sy >= h {
			continue
		}
		for col := 0; col < cw; col++ {
			sx := cx + col - x
			if sx < 0 || sx >= w {
				continue
			}

			cpos := (row*cw + col) * 4
			alpha := int(cur[cpos+3])
			if alpha == 0 {
				continue
			}

			spos := (sy*w + sx) * 4
			if alpha == opaque {
				screen[spos] = cur[cpos]
				screen[spos+1] = cur[cpos+1]
				screen[spos+2] = cur[cpos+2]
				continue
			}
			for i := 0; i < 3; i++ {
				screen[spos+i] = byte((int(cur[cpos+i])*alpha + int(screen[spos+i])*(opaque-alpha)) / opaque)
			}
		}
	}
}
