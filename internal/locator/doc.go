// Package locator matches spectroscopy samples against a reference spectrum.
//
// A Locator holds a wide, feature-rich reference trace. Presented with a
// short sample that resembles some part of that reference, it determines the
// positions the sample could have originated from, using a normalized
// cross-correlation. Each candidate carries a quality (how well the shapes
// agree) and a reliability (how probable it is that this candidate, rather
// than one of the others, is the true origin).
package locator
