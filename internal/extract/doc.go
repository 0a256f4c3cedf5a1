// Cubegate - REST Gateway for Qlik Sense Hypercube Data
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/cubegate

/*
Package extract turns an engine object's hypercube into flat, paginated rows.

An Extractor picks one of three strategies for each request:

  - direct: the object's own straight hypercube is read, honouring the
    visual column order.
  - pivot: a collapsed or empty pivot is read through
    GetHyperCubePivotData and its left tree flattened into rows.
  - straight: when the pivot read fails or does not expose every
    dimension, a transient straight session object is built from the
    object's dimensions and measures and read instead.

Data is fetched in row windows sized so that a single request stays under
the engine's cell limit. Filters, unpushed selections and sorting run on
the gateway; when any of them is present every row is fetched and the page
is cut in memory.

The flattening and matching functions are pure and hold no engine state.
*/
package extract
