// Package contour extracts an animal's boundary from a segmentation field.
//
// The pipeline is three stages, each of which can softly fail:
//
//  1. [FindKeypoints]: locate the two anchor points bounding the edge of
//     interest on the mask. No anchors is a normal outcome, not an error.
//  2. [Trace]: minimum-cost path between the anchors through the
//     segmentation field. The path prefers high-confidence, high-contrast
//     boundary pixels.
//  3. [SeparateEdges]: split the traced outline into a leading and a
//     trailing edge at the point of maximum direction change (the tip).
//
// Outline points are [image.Point] values with X as column and Y as row.
package contour

import "image"

// Outline is an ordered 8-connected pixel path from the start anchor to
// the end anchor. Length is at least 2 for a successful trace.
type Outline []image.Point
