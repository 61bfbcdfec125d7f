// Copyright (c) 2025 The cstake developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package node

import (
	"context"
	"time"

	"github.com/beevik/ntp"
	"github.com/ethereum/go-ethereum/common"
)

// HouseKeeping runs periodic background checks until the context is
// canceled. Accrual depends on wall time, so a drifting clock gets a loud
// warning.
func (n *Node) HouseKeeping(ctx context.Context) {
	logger.Debug("enter house keeping")

	clockSyncTicker := time.NewTicker(10 * time.Minute)
	defer func() {
		logger.Debug("leave house keeping")
		clockSyncTicker.Stop()
	}()

	go checkClockOffset()
	for {
		select {
		case <-ctx.Done():
			return
		case <-clockSyncTicker.C:
			go checkClockOffset()
		}
	}
}

// maxClockOffset is far below a day, but drift compounds and the accrual
// boundary is day granular.
const maxClockOffset = time.Minute

func checkClockOffset() {
	resp, err := ntp.Query("pool.ntp.org")
	if err != nil {
		logger.Debug("failed to access NTP", "err", err)
		return
	}
	offset := resp.ClockOffset
	if offset < 0 {
		offset = -offset
	}
	if offset > maxClockOffset {
		logger.Warn("clock offset detected, interest accrual boundaries may be off",
			"offset", common.PrettyDuration(resp.ClockOffset))
	}
}
