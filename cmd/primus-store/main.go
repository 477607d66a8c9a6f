/*
 * Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
 * See LICENSE for license information.
 */

package main

import (
	"fmt"

	"github.com/AMD-AIG-AIMA/PrimusStore/pkg/server"
)

func main() {
	s, err := server.NewServer()
	if err != nil {
		fmt.Println("failed to new server, err: ", err.Error())
		return
	}
	s.Start()
}
