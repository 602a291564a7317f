package controller

import (
	"time"

	"github.com/gofiber/websocket/v2"

	"phishdrill/utils"
)

const liveFeedPingInterval = 30 * time.Second

// HandleLiveFeed streams tracking events to an admin dashboard. An optional
// ?campaign_id= narrows the stream to one campaign.
func (cc *CampaignController) HandleLiveFeed(c *websocket.Conn) {
	defer c.Close()

	campaignID := utils.ParseUint(c.Query("campaign_id"))
	events, unsubscribe := cc.Events.Subscribe()
	defer unsubscribe()

	// The read loop only notices when the client goes away
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(liveFeedPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-closed:
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if campaignID != 0 && event.CampaignID != campaignID {
				continue
			}
			if err := c.WriteJSON(event); err != nil {
				cc.Logger.WithError(err).Debug("Live feed client disconnected")
				return
			}
		case <-ping.C:
			if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
