// Copyright (c) 2023 Colin McRae

package bitmatrix

import (
	"sort"

	"github.com/emirpasic/gods/trees/binaryheap"
)

// workCol is a live column during elimination. ids tracks which
// original columns were XORed into it, so null vectors over the
// reduced matrix lift straight back to the original column set.
type workCol struct {
	rows []int32
	ids  []int32
}

type heapEntry struct {
	weight int32
	row    int32
}

func entryComparator(a, b interface{}) int {
	ea := a.(heapEntry)
	eb := b.(heapEntry)
	if ea.weight != eb.weight {
		return int(ea.weight - eb.weight)
	}
	return int(ea.row - eb.row)
}

// Solve reduces the matrix by structured Gaussian elimination -- a
// filter pass removing singleton rows, then a merge pass collapsing
// rows of weight at most mergeLimit -- and solves the dense residual
// over GF(2). The returned vectors are deterministic for a given
// matrix.
func (m *Sparse) Solve(mergeLimit int) *NullSpace {
	if mergeLimit < 1 {
		mergeLimit = 1
	}

	cols := make([]*workCol, len(m.cols))
	for j, c := range m.cols {
		cols[j] = &workCol{rows: c, ids: []int32{int32(j)}}
	}

	// Filter pass: a row set in exactly one column forces that column
	// out, since no combination including it can cancel the row.
	// Deleting columns creates new singleton rows, so iterate until
	// stable.
	for {
		weight := make([]int32, m.numRows)
		holder := make([]int32, m.numRows)
		for j, c := range cols {
			if c == nil {
				continue
			}
			for _, r := range c.rows {
				weight[r]++
				holder[r] = int32(j)
			}
		}
		removed := false
		for r := 0; r < m.numRows; r++ {
			if weight[r] == 1 && cols[holder[r]] != nil {
				cols[holder[r]] = nil
				removed = true
			}
		}
		if !removed {
			break
		}
	}

	// Merge pass: rows touching few columns are cheap to eliminate
	// early, which keeps the dense residual small. Row membership and
	// weights are maintained incrementally; the heap is lazy, so
	// stale entries are discarded on pop.
	rowCols := make([]map[int32]struct{}, m.numRows)
	weight := make([]int32, m.numRows)
	for j, c := range cols {
		if c == nil {
			continue
		}
		for _, r := range c.rows {
			if rowCols[r] == nil {
				rowCols[r] = make(map[int32]struct{})
			}
			rowCols[r][int32(j)] = struct{}{}
			weight[r]++
		}
	}
	rowDead := make([]bool, m.numRows)

	heap := binaryheap.NewWith(entryComparator)
	for r := 0; r < m.numRows; r++ {
		if weight[r] > 0 && int(weight[r]) <= mergeLimit {
			heap.Push(heapEntry{weight: weight[r], row: int32(r)})
		}
	}

	setBit := func(r, j int32) {
		if rowCols[r] == nil {
			rowCols[r] = make(map[int32]struct{})
		}
		rowCols[r][j] = struct{}{}
		weight[r]++
		if !rowDead[r] && int(weight[r]) <= mergeLimit {
			heap.Push(heapEntry{weight: weight[r], row: r})
		}
	}
	clearBit := func(r, j int32) {
		delete(rowCols[r], j)
		weight[r]--
		if !rowDead[r] && weight[r] > 0 && int(weight[r]) <= mergeLimit {
			heap.Push(heapEntry{weight: weight[r], row: r})
		}
	}

	for !heap.Empty() {
		v, _ := heap.Pop()
		entry := v.(heapEntry)
		r := entry.row
		if rowDead[r] || weight[r] != entry.weight || weight[r] == 0 {
			continue
		}
		if int(weight[r]) > mergeLimit {
			continue
		}

		members := make([]int32, 0, len(rowCols[r]))
		for j := range rowCols[r] {
			members = append(members, j)
		}
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })

		// The lightest member column absorbs into the others.
		light := members[0]
		for _, j := range members[1:] {
			if len(cols[j].rows) < len(cols[light].rows) ||
				(len(cols[j].rows) == len(cols[light].rows) && j < light) {
				light = j
			}
		}
		lc := cols[light]
		for _, j := range members {
			if j == light {
				continue
			}
			before := cols[j].rows
			cols[j].rows = xorSorted(before, lc.rows)
			cols[j].ids = xorSorted(cols[j].ids, lc.ids)
			// Toggle row membership for rows whose bit changed.
			i, k := 0, 0
			for i < len(before) || k < len(lc.rows) {
				switch {
				case k >= len(lc.rows) || (i < len(before) && before[i] < lc.rows[k]):
					i++
				case i >= len(before) || before[i] > lc.rows[k]:
					setBit(lc.rows[k], j)
					k++
				default:
					clearBit(before[i], j)
					i++
					k++
				}
			}
		}
		// Remove the absorbed column and the now-covered row.
		for _, rr := range lc.rows {
			clearBit(rr, light)
		}
		cols[light] = nil
		rowDead[r] = true
	}

	return m.solveDense(cols)
}

// solveDense packs the surviving columns into 64-bit words and runs
// classical Gaussian elimination, collecting every column that reduces
// to zero as a null-space vector.
func (m *Sparse) solveDense(cols []*workCol) *NullSpace {
	// Compact the surviving rows and columns.
	rowIndex := make([]int32, m.numRows)
	for i := range rowIndex {
		rowIndex[i] = -1
	}
	numLiveRows := 0
	var live []*workCol
	for _, c := range cols {
		if c == nil {
			continue
		}
		live = append(live, c)
		for _, r := range c.rows {
			if rowIndex[r] == -1 {
				rowIndex[r] = int32(numLiveRows)
				numLiveRows++
			}
		}
	}

	words := (numLiveRows + 63) / 64
	markerWords := (len(live) + 63) / 64
	bits := make([][]uint64, len(live))
	marker := make([][]uint64, len(live))
	for j, c := range live {
		bits[j] = make([]uint64, words)
		for _, r := range c.rows {
			cr := rowIndex[r]
			bits[j][cr/64] |= 1 << (uint(cr) % 64)
		}
		marker[j] = make([]uint64, markerWords)
		marker[j][j/64] |= 1 << (uint(j) % 64)
	}

	lowestBit := func(v []uint64) int {
		for w, word := range v {
			if word != 0 {
				for b := 0; b < 64; b++ {
					if word&(1<<uint(b)) != 0 {
						return w*64 + b
					}
				}
			}
		}
		return -1
	}

	ns := &NullSpace{}
	pivot := make([]int, numLiveRows+1)
	for i := range pivot {
		pivot[i] = -1
	}
	for j := range live {
		for {
			r := lowestBit(bits[j])
			if r == -1 {
				// Column j reduced to zero: its marker names the live
				// columns, whose id sets lift to original columns.
				toggle := make(map[int32]struct{})
				for k := range live {
					if marker[j][k/64]&(1<<(uint(k)%64)) == 0 {
						continue
					}
					for _, id := range live[k].ids {
						if _, ok := toggle[id]; ok {
							delete(toggle, id)
						} else {
							toggle[id] = struct{}{}
						}
					}
				}
				if len(toggle) > 0 {
					ns.vectors = append(ns.vectors, sortedIDs(toggle))
				}
				break
			}
			if pivot[r] == -1 {
				pivot[r] = j
				break
			}
			p := pivot[r]
			for w := range bits[j] {
				bits[j][w] ^= bits[p][w]
			}
			for w := range marker[j] {
				marker[j][w] ^= marker[p][w]
			}
		}
	}
	return ns
}
