package server

// getDefaultHTML provides the built-in web interface. It is used when
// web/static/index.html is not present next to the binary.
func getDefaultHTML() string {
	return `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Sound Recorder</title>
    <link rel="stylesheet" href="https://cdn.jsdelivr.net/npm/@picocss/pico@2/css/pico.min.css">
    <style>
        #time { font-family: monospace; font-size: 2.5rem; text-align: center; }
        .controls { display: flex; gap: 1rem; justify-content: center; }
        .error { color: var(--pico-del-color); }
    </style>
</head>
<body>
    <main class="container">
        <h1>Sound Recorder</h1>
        <p id="time">Record Time: 00:00:00</p>
        <div class="controls">
            <input id="name" type="text" placeholder="File name (optional)">
            <button id="record" onclick="press('/record', true)">Record</button>
            <button id="play" onclick="press('/play', false)" disabled>Play</button>
        </div>
        <p id="message"></p>
        <h2>Recordings</h2>
        <ul id="recordings"></ul>
    </main>
    <script>
        function apply(snap) {
            document.getElementById('time').textContent = snap.time_text;
            const rec = document.getElementById('record');
            rec.textContent = snap.record.label;
            rec.disabled = !snap.record.enabled;
            const play = document.getElementById('play');
            play.textContent = snap.play.label;
            play.disabled = !snap.play.enabled;
        }

        async function press(path, withName) {
            const body = new URLSearchParams();
            const name = document.getElementById('name').value;
            if (withName && name) body.set('name', name);
            const res = await fetch(path, { method: 'POST', body });
            const data = await res.json();
            const msg = document.getElementById('message');
            msg.className = data.success ? '' : 'error';
            msg.textContent = data.success ? (data.message || '') : data.error;
            loadRecordings();
        }

        async function loadRecordings() {
            const res = await fetch('/api/recordings');
            const data = await res.json();
            const list = document.getElementById('recordings');
            list.innerHTML = '';
            for (const rec of data.recordings) {
                const li = document.createElement('li');
                const a = document.createElement('a');
                a.href = rec.stream_url;
                a.textContent = rec.name;
                li.appendChild(a);
                li.append(' ' + rec.duration_human + ' ' + rec.size_human);
                list.appendChild(li);
            }
        }

        new EventSource('/events').onmessage = (e) => apply(JSON.parse(e.data));
        loadRecordings();
    </script>
</body>
</html>`
}
