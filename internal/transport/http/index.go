package http

// indexHTML is a self-contained browser client for poking at the relay
// without any tooling: pick a room, connect, type.
const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>roomcast</title>
<style>
body { font-family: monospace; max-width: 40rem; margin: 2rem auto; }
#chat { border: 1px solid #999; height: 20rem; overflow-y: scroll; padding: 0.5rem; }
#chat p { margin: 0.2rem 0; }
input { font-family: inherit; }
#text { width: 70%; }
.sys { color: #777; }
</style>
</head>
<body>
<h1>roomcast</h1>
<p>
<input id="room" value="general" size="12">
<button id="join" type="button">join</button>
</p>
<div id="chat"><p class="sys">pick a room and hit join</p></div>
<p>
<input id="text" disabled>
<button id="send" type="button" disabled>send</button>
</p>
<script>
var chat = document.getElementById('chat');
var text = document.getElementById('text');
var send = document.getElementById('send');
var ws = null;

function line(msg, cls) {
    var p = document.createElement('p');
    if (cls) { p.className = cls; }
    p.innerText = msg;
    chat.appendChild(p);
    chat.scrollTop = chat.scrollHeight;
}

document.getElementById('join').onclick = function() {
    if (ws) { ws.close(); }
    var room = document.getElementById('room').value;
    if (!room) { line('room name required', 'sys'); return; }
    var proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
    ws = new WebSocket(proto + location.host + '/chat/' + encodeURIComponent(room));
    ws.onopen = function() {
        line('joined ' + room, 'sys');
        text.disabled = false;
        send.disabled = false;
        text.focus();
    };
    ws.onmessage = function(ev) { line(ev.data); };
    ws.onclose = function() {
        line('disconnected', 'sys');
        text.disabled = true;
        send.disabled = true;
    };
};

function submit() {
    if (!ws || !text.value) { return; }
    ws.send(text.value);
    line('me: ' + text.value);
    text.value = '';
}
send.onclick = submit;
text.onkeydown = function(ev) { if (ev.key === 'Enter') { submit(); } };
</script>
</body>
</html>
`
