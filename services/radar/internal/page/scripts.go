package page

// Browser-side snippets. Each is a function expression evaluated with rod.Eval.

const jsCommentSelector = `ytd-comment-thread-renderer, ytd-comment-renderer`

const jsDialogSelector = `tp-yt-paper-dialog, ytd-report-service-dialog-renderer`

const jsInfo = `(sel) => ({
	pageTitle: document.title,
	url: location.href,
	videoId: new URLSearchParams(location.search).get('v') || '',
	commentsCount: document.querySelectorAll(sel).length,
})`

const jsComments = `(sel) => {
	const authorSelectors = [
		'#author-text > span', '#author-text span:first-child', 'ytd-comment-view-model #author-text span',
		'#author-text', 'a#author-text', 'yt-formatted-string#author-text', '#header-author yt-formatted-string',
	];
	const attrNames = ['data-comment-id', 'data-target', 'data-aid', 'data-id'];
	window.__radarHandleSeq = window.__radarHandleSeq || 0;
	const seen = new Set();
	const out = [];
	document.querySelectorAll(sel).forEach((node) => {
		if (seen.has(node)) return;
		seen.add(node);
		if (!node.dataset.radarHandle) node.dataset.radarHandle = 'h' + (++window.__radarHandleSeq);
		let author = '';
		for (const s of authorSelectors) {
			const el = node.querySelector(s);
			const v = el && (el.innerText || el.textContent || '').trim();
			if (v) { author = v; break; }
		}
		const textEl = node.querySelector('#content-text, #content, #comment-content, ytd-expander');
		const attrs = {};
		for (const a of attrNames) { const v = node.getAttribute(a); if (v) attrs[a] = v; }
		const links = [];
		node.querySelectorAll('a[href*="comment"]').forEach((a) => { if (a.href) links.push(a.href); });
		const r = node.getBoundingClientRect();
		out.push({
			handle: node.dataset.radarHandle,
			index: out.length,
			elementId: node.id || '',
			attrs, links, author,
			text: textEl ? (textEl.innerText || textEl.textContent || '') : '',
			rect: { top: r.top, left: r.left, width: r.width, height: r.height },
			visible: !!node.offsetParent,
			scanned: node.dataset.scanned === 'true',
			radarId: node.getAttribute('data-radar-id') || '',
		});
	});
	return out;
}`

const jsMarkScanned = `(handle, fp) => {
	const node = document.querySelector('[data-radar-handle="' + handle + '"]');
	if (!node) return false;
	node.dataset.scanned = 'true';
	node.setAttribute('data-radar-id', fp);
	return true;
}`

const jsMarkSpam = `(handle, confidence) => {
	const node = document.querySelector('[data-radar-handle="' + handle + '"]');
	if (!node) return false;
	const badge = document.createElement('div');
	badge.className = 'radar-spam-badge';
	badge.textContent = '⚠️ SPAM JUDI (' + confidence + '%)';
	badge.style.cssText = 'background:#ff4757;color:#fff;padding:8px 12px;border-radius:8px;font-size:12px;margin:8px 0;';
	const container = (node.querySelector('#content, #content-text') || {}).parentElement || node;
	container.appendChild(badge);
	node.style.border = '2px solid #ff4757';
	node.style.borderRadius = '8px';
	return true;
}`

const jsHighlight = `(handle, color, ttl) => {
	const node = document.querySelector('[data-radar-handle="' + handle + '"]');
	if (!node) return false;
	const border = node.style.border, shadow = node.style.boxShadow;
	node.style.border = '3px solid ' + color;
	node.style.boxShadow = '0 0 15px ' + color + '80';
	node.dataset.radarHighlight = color;
	setTimeout(() => {
		if (node.dataset.radarHighlight === color) {
			node.style.border = border;
			node.style.boxShadow = shadow;
			delete node.dataset.radarHighlight;
		}
	}, ttl);
	return true;
}`

const jsClearHighlight = `(fp) => {
	const node = document.querySelector('[data-radar-id="' + fp + '"]');
	if (!node) return false;
	node.style.border = '';
	node.style.boxShadow = '';
	delete node.dataset.radarHighlight;
	return true;
}`

// jsTagMenu marks the comment's "more actions" button so rod can click it.
const jsTagMenu = `(handle) => {
	const node = document.querySelector('[data-radar-handle="' + handle + '"]');
	if (!node) return false;
	document.querySelectorAll('[data-radar-menu]').forEach((b) => b.removeAttribute('data-radar-menu'));
	const selectors = [
		'button[aria-label*="More actions"]', 'button[aria-label*="Lainnya"]', 'button[aria-label*="Tindakan lainnya"]',
		'button[aria-label*="menu"]', 'yt-icon-button[aria-label*="More"]', '#menu button',
		'ytd-menu-renderer button', 'button[aria-haspopup="menu"]',
	];
	let scope = node;
	for (let depth = 0; depth < 4 && scope; depth++, scope = scope.parentElement) {
		for (const s of selectors) {
			const b = scope.querySelector(s);
			if (b && b.offsetParent) { b.setAttribute('data-radar-menu', '1'); return true; }
		}
	}
	return false;
}`

const jsTagReportItem = `() => {
	document.querySelectorAll('[data-radar-report]').forEach((b) => b.removeAttribute('data-radar-report'));
	for (const item of document.querySelectorAll('tp-yt-paper-item, ytd-menu-service-item-renderer')) {
		const text = (item.innerText || item.textContent || '').trim();
		if (text.includes('Laporkan') || text.includes('Report')) {
			item.setAttribute('data-radar-report', '1');
			return true;
		}
	}
	return false;
}`

const jsDialogOpen = `(sel) => !!document.querySelector(sel)`

const jsDecorateDialog = `(sel) => {
	const d = document.querySelector(sel);
	if (!d) return false;
	d.style.border = '3px solid #f39c12';
	d.style.borderRadius = '8px';
	return true;
}`

const jsClearDialog = `(sel) => {
	const d = document.querySelector(sel);
	if (!d) return false;
	d.style.border = '';
	d.style.borderRadius = '';
	return true;
}`

const jsShowOverlay = `(message, ttl) => {
	const old = document.getElementById('radar-instruction-overlay');
	if (old) old.remove();
	const o = document.createElement('div');
	o.id = 'radar-instruction-overlay';
	o.style.cssText = 'position:fixed;top:20px;right:20px;background:#e67e22;color:#fff;padding:15px 20px;border-radius:10px;z-index:999999;max-width:350px;font:14px Arial,sans-serif;';
	const msg = document.createElement('div');
	msg.textContent = message;
	const close = document.createElement('button');
	close.textContent = 'Tutup';
	close.addEventListener('click', () => o.remove());
	o.append(msg, close);
	document.body.appendChild(o);
	setTimeout(() => { if (o.parentNode) o.remove(); }, ttl);
	return true;
}`

const jsRemoveOverlay = `() => {
	const o = document.getElementById('radar-instruction-overlay');
	if (o) o.remove();
	return true;
}`
