package ws

import (
	"encoding/json"
	"sync"

	"github.com/Klemen9/Belezenje-delovnega-casa-admin/internal/comm"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// Ws pushes dataset-change and sync-failure notices to connected admin
// UIs. Traffic is one way; the UI mutates through the HTTP API.
type Ws struct {
	connMap sync.Map // socketId -> *websocket.Conn
	mtx     sync.Mutex
}

func NewWs() *Ws {
	return &Ws{}
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, conn)
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
}

// Broadcast sends one message to every connected UI. A failed write
// drops that connection; the client reconnects and re-fetches state.
func (s *Ws) Broadcast(msg *comm.Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("Error marshaling broadcast message: %s", err)
		return
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.connMap.Range(func(key, value any) bool {
		conn := value.(*websocket.Conn)
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			log.Warnf("dropping socket %s: %s", key.(string), err)
			conn.Close()
			s.connMap.Delete(key)
		}
		return true
	})
}
