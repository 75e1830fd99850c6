// Triviabox multiplayer game
//
// Browser clients join a shared quiz session identified by a room code. The
// creator of a room becomes its host and is the only one who can start the
// game; once started, timed trivia rounds run back to back until the room
// empties out. Temporary disconnects are reconciled by display name within
// a grace window without losing scores.
//
// Routes:
//   - $path                 → HTML client
//   - $path/ws              → WebSocket carrying the game protocol
//   - $path/qr/:roomid      → PNG QR code linking to the room

package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

// qrHandler generates a PNG QR code for a room join URL using go-qrcode.
func qrHandler(path string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		roomID := ps.ByName("roomid")
		if roomID == "" {
			http.Error(w, "missing room id", http.StatusBadRequest)
			return
		}

		// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}

		// We are at $path/qr/:roomid; the join URL is $path?room=:roomid.
		base := strings.TrimSuffix(r.URL.Path, "/qr/"+roomID)

		url := scheme + "://" + r.Host + base + "?room=" + roomID

		const qrSize = 320 // mobile-friendly size
		png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(png)
	}
}

func serveTriviaPage(cfg *Config) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Header().Set("Cache-Control", "public, max-age=3600")
		w.Header().Set("Expires", time.Now().Add(time.Hour).UTC().Format(http.TimeFormat))
		securityHeaders(cfg, w)

		_, _ = w.Write([]byte(triviaHTML))
	}
}

func serveWSHandle(reg *Registry) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		serveWS(reg)(w, r)
	}
}

// registerTriviaGame sets up the game routes under path.
func registerTriviaGame(cfg *Config, path string, mux *httprouter.Router, reg *Registry) {
	mux.GET(cfg.prefix+path, serveTriviaPage(cfg))
	mux.GET(cfg.prefix+path+"/ws", serveWSHandle(reg))
	mux.GET(cfg.prefix+path+"/qr/:roomid", qrHandler(cfg.prefix+path))
}

// Simple HTML client for quick testing
const triviaHTML = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Triviabox</title>
<style>
  body { font-family: system-ui, -apple-system, BlinkMacSystemFont, "Segoe UI", sans-serif; margin: 2rem; }
  h1 { margin-bottom: 0.5rem; }
  #status { margin-bottom: 1rem; font-size: 0.9rem; }
  #players { padding: 0; list-style: none; }
  #players li { padding: 0.25rem 0; border-bottom: 1px solid #ddd; }
  #answers button { display: block; width: 100%; margin: 0.25rem 0; padding: 0.5rem; text-align: left; }
  #answers button.picked { font-weight: bold; }
  .hidden { display: none; }
</style>
</head>
<body>
<h1>Triviabox</h1>
<div id="status">Connecting…</div>

<div id="lobby">
  <input id="name" placeholder="Your name">
  <input id="room" placeholder="Room code">
  <button id="create">Create Room</button>
  <button id="join">Join Room</button>
  <button id="start" class="hidden">Start Game</button>
</div>

<ul id="players"></ul>

<div id="game" class="hidden">
  <div id="timer"></div>
  <div id="category"></div>
  <div id="question"></div>
  <div id="answers"></div>
  <div id="result"></div>
</div>

<script>
(function() {
  const el = (id) => document.getElementById(id);

  const proto = (location.protocol === 'https:') ? 'wss://' : 'ws://';
  const wsPath = location.pathname.replace(/\/$/, '') + '/ws';
  const ws = new WebSocket(proto + location.host + wsPath);

  const urlRoom = new URLSearchParams(location.search).get('room');
  if (urlRoom) { el('room').value = urlRoom; }

  let picked = null;
  let isHost = false;

  ws.onopen = function() { el('status').textContent = 'Connected.'; };
  ws.onclose = function() { el('status').textContent = 'Disconnected.'; };

  el('create').onclick = function() {
    isHost = true;
    ws.send(JSON.stringify({ type: 'create_room', roomId: el('room').value, playerName: el('name').value }));
  };
  el('join').onclick = function() {
    ws.send(JSON.stringify({ type: 'join_room', roomId: el('room').value, playerName: el('name').value }));
  };
  el('start').onclick = function() {
    ws.send(JSON.stringify({ type: 'start_game', roomId: el('room').value }));
  };

  ws.onmessage = function(event) {
    const msg = JSON.parse(event.data);

    switch (msg.type) {
    case 'room_created':
      el('status').textContent = 'Room ' + msg.roomId + ' created. Share the code!';
      if (isHost) { el('start').classList.remove('hidden'); }
      break;
    case 'players_update':
      el('players').innerHTML = '';
      msg.players.forEach(function(p) {
        const li = document.createElement('li');
        li.textContent = p.name + ' — ' + p.score;
        el('players').appendChild(li);
      });
      break;
    case 'game_started':
      el('lobby').classList.add('hidden');
      el('game').classList.remove('hidden');
      break;
    case 'new_question':
      picked = null;
      el('result').textContent = '';
      el('category').textContent = msg.question.category + ' (' + msg.question.difficulty + ')';
      el('question').textContent = msg.question.question;
      el('answers').innerHTML = '';
      msg.answers.forEach(function(a) {
        const btn = document.createElement('button');
        btn.textContent = a;
        btn.onclick = function() {
          if (picked !== null) { return; }
          picked = a;
          btn.classList.add('picked');
          ws.send(JSON.stringify({ type: 'submit_answer', roomId: el('room').value, answer: a }));
        };
        el('answers').appendChild(btn);
      });
      break;
    case 'time_update':
      el('timer').textContent = msg.time + 's';
      break;
    case 'question_end':
      el('timer').textContent = '';
      if (picked !== null) {
        el('result').textContent = (picked === msg.correctAnswer) ? 'Correct!' : 'Wrong — it was ' + msg.correctAnswer;
      } else {
        el('result').textContent = 'The answer was ' + msg.correctAnswer;
      }
      break;
    case 'error':
      el('status').textContent = msg.message;
      break;
    }
  };
})();
</script>
</body>
</html>
`
