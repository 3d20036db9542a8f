// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/fusion/pkg/core/shapes"
	"github.com/gomlx/fusion/pkg/fusion/ir"
	"github.com/gomlx/fusion/pkg/fusion/vectorization"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	titleStyle = lipgloss.NewStyle().Bold(true).Padding(1, 4, 1, 4)
)

func newPlainTable(withHeader bool) *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if withHeader && row == 1 {
				s = headerRowStyle
				return
			}
			switch {
			case row%2 == 0:
				s = oddRowStyle
			default:
				s = evenRowStyle
			}
			if col == 0 {
				s = s.Align(lipgloss.Right)
			} else {
				s = s.Align(lipgloss.Left)
			}
			return
		})
}

// tensorInfo describes how a tensor with a line-size decision is accessed in the fusion group.
type tensorInfo struct {
	shape shapes.Shape
	roles []string
}

// describeTensors collects the shape and the access roles of each tensor id that gets a decision.
func describeTensors(plan *ir.Plan) map[ir.TensorID]*tensorInfo {
	infos := make(map[ir.TensorID]*tensorInfo)
	addRole := func(tensor ir.TensorIR, role string) {
		info, found := infos[tensor.ID]
		if !found {
			info = &tensorInfo{shape: tensor.Shape}
			infos[tensor.ID] = info
		}
		info.roles = append(info.roles, role)
	}
	for _, input := range plan.Inputs {
		if swap, found := plan.SwapForOriginal(input.Tensor.ID); found {
			addRole(input.Tensor, fmt.Sprintf("input, read as %s with axes %v swapped", swap.Swapped.ID, swap.Dims))
			continue
		}
		addRole(input.Tensor, "input")
	}
	for _, reshape := range plan.Reshapes {
		role := fmt.Sprintf("reshaped as %s%s", reshape.Reshaped.ID, reshape.Reshaped.Shape)
		if reshape.MultiReads {
			role += ", both read"
		}
		addRole(reshape.Original, role)
	}
	for _, output := range plan.Outputs {
		addRole(output, "output")
	}
	return infos
}

// tableRows returns one row per tensor of the mapping, in the order they were resolved.
func tableRows(resolver *vectorization.Resolver, plan *ir.Plan, mapping *vectorization.Mapping) [][]string {
	infos := describeTensors(plan)
	elementSize := resolver.DType().Size()
	var rows [][]string
	for id, v := range mapping.All() {
		shapeStr, rolesStr := "?", ""
		if info, found := infos[id]; found {
			shapeStr = info.shape.String()
			for ii, role := range info.roles {
				if ii > 0 {
					rolesStr += "; "
				}
				rolesStr += role
			}
		}
		rows = append(rows, []string{
			id.String(), shapeStr, rolesStr, v.String(),
			humanize.Bytes(uint64(v.LineSize() * elementSize)),
		})
	}
	return rows
}

func report(planPath string, resolver *vectorization.Resolver, plan *ir.Plan, mapping *vectorization.Mapping) {
	fmt.Println(titleStyle.Render(planPath))
	table := newPlainTable(true)
	table.Row("Tensor", "Shape", "Access", "Line size", "Bytes/line")
	var packed int
	for _, row := range tableRows(resolver, plan, mapping) {
		table.Row(row...)
	}
	for _, v := range mapping.All() {
		if v.LineSize() > 1 {
			packed++
		}
	}
	fmt.Println(table.Render())
	fmt.Printf("%s of %s tensors packed (%s descriptors in plan)\n",
		humanize.Comma(int64(packed)), humanize.Comma(int64(mapping.Len())), humanize.Comma(int64(plan.NumTensors())))
}
