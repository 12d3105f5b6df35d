//                           _       _
// __      _____  __ ___   ___  __ _| |_ ___
// \ \ /\ / / _ \/ _` \ \ / / |/ _` | __/ _ \
//  \ V  V /  __/ (_| |\ V /| | (_| | ||  __/
//   \_/\_/ \___|\__,_| \_/ |_|\__,_|\__\___|
//
//  Copyright © 2016 - 2024 VertexDB. All rights reserved.
//

package errors

import (
	"os"
	"runtime/debug"
	"strings"

	"github.com/sirupsen/logrus"
)

func GoWrapper(f func(), logger logrus.FieldLogger) {
	go func() {
		defer func() {
			if !recoveryDisabled() {
				if r := recover(); r != nil {
					logger.Errorf("Recovered from panic: %v", r)
					debug.PrintStack()
				}
			}
		}()
		f()
	}()
}

func recoveryDisabled() bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv("DISABLE_RECOVERY_ON_PANIC")))
	return v == "true" || v == "1" || v == "on"
}
