package kds

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/yeremiapane/restaurant-pos/models"
	"github.com/yeremiapane/restaurant-pos/utils"
)

// Event types
const (
	EventKOTCreated  = "kot_created"
	EventKOTUpdate   = "kot_update"
	EventOrderUpdate = "order_update"
	EventTableUpdate = "table_update"
)

const writeWait = 5 * time.Second

type Message struct {
	Event    string      `json:"event"`
	OutletID uint        `json:"outlet_id"`
	Data     interface{} `json:"data"`
}

// Client is a connected kitchen display or staff screen.
// OutletID 0 subscribes to every outlet of the tenant.
type Client struct {
	Role     string
	TenantID uint
	OutletID uint
}

func (cl Client) wants(tenantID, outletID uint) bool {
	if cl.TenantID != tenantID {
		return false
	}
	return cl.OutletID == 0 || cl.OutletID == outletID
}

// KDSHub holds every connected websocket client.
type KDSHub struct {
	clients map[*websocket.Conn]Client
	mutex   sync.Mutex
}

var kdsHub = KDSHub{
	clients: make(map[*websocket.Conn]Client),
}

func RegisterClient(conn *websocket.Conn, client Client) {
	kdsHub.mutex.Lock()
	defer kdsHub.mutex.Unlock()
	kdsHub.clients[conn] = client
}

func UnregisterClient(conn *websocket.Conn) {
	kdsHub.mutex.Lock()
	defer kdsHub.mutex.Unlock()
	delete(kdsHub.clients, conn)
	conn.Close()
}

// ClientCount returns the number of live connections.
func ClientCount() int {
	kdsHub.mutex.Lock()
	defer kdsHub.mutex.Unlock()
	return len(kdsHub.clients)
}

func BroadcastKOTCreated(tenantID uint, kot models.KOT) {
	broadcast(tenantID, Message{Event: EventKOTCreated, OutletID: kot.OutletID, Data: kot})
}

func BroadcastKOTUpdate(tenantID uint, kot models.KOT) {
	broadcast(tenantID, Message{Event: EventKOTUpdate, OutletID: kot.OutletID, Data: kot})
}

func BroadcastOrderUpdate(order models.Order) {
	broadcast(order.TenantID, Message{Event: EventOrderUpdate, OutletID: order.OutletID, Data: order})
}

func BroadcastTableUpdate(tenantID uint, table models.Table) {
	broadcast(tenantID, Message{Event: EventTableUpdate, OutletID: table.OutletID, Data: table})
}

func broadcast(tenantID uint, msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		utils.ErrorLogger.Errorf("kds: marshal %s: %v", msg.Event, err)
		return
	}

	kdsHub.mutex.Lock()
	defer kdsHub.mutex.Unlock()

	sent := 0
	for conn, client := range kdsHub.clients {
		if !client.wants(tenantID, msg.OutletID) {
			continue
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			utils.ErrorLogger.WithFields(logrus.Fields{
				"event": msg.Event,
				"role":  client.Role,
			}).Warnf("kds: dropping client: %v", err)
			delete(kdsHub.clients, conn)
			conn.Close()
			continue
		}
		sent++
	}
	utils.InfoLogger.Debugf("kds: %s sent to %d clients", msg.Event, sent)
}
